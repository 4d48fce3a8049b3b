package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mailmirror/internal/adapters/driving/tui"
	"github.com/custodia-labs/mailmirror/internal/logger"
)

var viewCmd = &cobra.Command{
	Use:   "view [account]",
	Short: "Browse the mirror in a full-screen viewer",
	Long: `Open the inbox viewer for an account. The account may be omitted when
only one is linked.

While the viewer is open the scheduler keeps the mirror fresh; pass
--no-sync to browse the local copy only.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

var viewNoSync bool

func init() {
	viewCmd.Flags().BoolVar(&viewNoSync, "no-sync", false, "do not sync in the background")
	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, args []string) error {
	if accountService == nil {
		return errors.New("account service not configured")
	}

	accountID, err := resolveAccount(cmd.Context(), args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Log lines would tear the alt screen.
	restore := logger.Mute()
	defer restore()

	if scheduler != nil && !viewNoSync {
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	return tui.Run(ctx, tui.Config{
		Accounts:  accountService,
		Sync:      syncOrchestrator,
		Mirror:    mirrorEvents,
		AccountID: accountID,
	})
}

// resolveAccount returns the named account or the only linked one.
func resolveAccount(ctx context.Context, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	accounts, err := accountService.List(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list accounts: %w", err)
	}
	switch len(accounts) {
	case 0:
		return "", errors.New("no linked accounts: run 'mailmirror account add' first")
	case 1:
		return accounts[0].UserID, nil
	default:
		return "", fmt.Errorf("%d accounts are linked: name one", len(accounts))
	}
}
