package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync [account]",
	Short: "Sync one account or every linked account",
	Long: `Run one sync pass. With no argument every linked account is synced.

The first run of an account downloads the whole tracked label. Later runs
follow the Gmail change log from the stored cursor.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncOrchestrator == nil {
		return errors.New("sync orchestrator not configured")
	}

	var results []*domain.SyncResult
	if len(args) == 1 {
		results = []*domain.SyncResult{syncOrchestrator.RunForAccount(cmd.Context(), args[0])}
	} else {
		var err error
		results, err = syncOrchestrator.RunAll(cmd.Context())
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}
	}

	if len(results) == 0 {
		cmd.Println("No linked accounts. Run 'mailmirror account add' first.")
		return nil
	}

	p := newPrinter(cmd)
	failed := 0
	for _, r := range results {
		p.result(r)
		if r.Outcome == domain.OutcomeFailed || r.NeedsReauth() {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d account(s) failed", failed, len(results))
	}
	return nil
}
