package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/mailmirror/internal/connectors/google"
	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

// OAuthFlow runs the consent flow for a new account.
type OAuthFlow interface {
	AuthCodeURL(redirectURL, state, verifier string) string
	Exchange(ctx context.Context, redirectURL, code, verifier string) (*domain.OAuthToken, error)
	AccountEmail(ctx context.Context, token *domain.OAuthToken) (string, error)
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage linked Gmail accounts",
}

var accountAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Link a Gmail account",
	Long: `Link a Gmail account through Google's consent screen.

A one-off server on the loopback interface receives the authorisation code,
so the OAuth client must be of the "Desktop app" type.

Linking an account that is already linked refreshes its credential.`,
	Args: cobra.NoArgs,
	RunE: runAccountAdd,
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List linked accounts",
	Args:  cobra.NoArgs,
	RunE:  runAccountList,
}

var accountRemoveCmd = &cobra.Command{
	Use:   "remove [account]",
	Short: "Unlink an account and delete its mirror",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountRemove,
}

var accountEnableCmd = &cobra.Command{
	Use:   "enable [account]",
	Short: "Resume syncing an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAccountSync(cmd, args[0], true)
	},
}

var accountDisableCmd = &cobra.Command{
	Use:   "disable [account]",
	Short: "Pause syncing an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAccountSync(cmd, args[0], false)
	},
}

// Flags for account add.
var (
	accountAddPort    int
	accountAddTimeout time.Duration
)

func init() {
	accountAddCmd.Flags().IntVar(&accountAddPort, "port", 0, "loopback port for the OAuth redirect (0 picks a free port)")
	accountAddCmd.Flags().DurationVar(&accountAddTimeout, "timeout", 5*time.Minute, "how long to wait for consent")

	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountRemoveCmd)
	accountCmd.AddCommand(accountEnableCmd)
	accountCmd.AddCommand(accountDisableCmd)
	rootCmd.AddCommand(accountCmd)
}

func runAccountAdd(cmd *cobra.Command, _ []string) error {
	if accountService == nil {
		return errors.New("account service not configured")
	}
	if oauthFlow == nil {
		return errors.New("oauth client not configured: set gmail.client_id and gmail.client_secret")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", accountAddPort))
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	redirectURL := fmt.Sprintf("http://%s%s", ln.Addr(), google.CallbackPath)
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	cmd.Println("Open this URL in your browser to authorise mailmirror:")
	cmd.Println()
	cmd.Println(oauthFlow.AuthCodeURL(redirectURL, state, verifier))
	cmd.Println()
	cmd.Println("Waiting for authorization...")

	ctx, cancel := context.WithTimeout(cmd.Context(), accountAddTimeout)
	defer cancel()

	code, err := google.AwaitCallback(ctx, ln, state)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	token, err := oauthFlow.Exchange(ctx, redirectURL, code, verifier)
	if err != nil {
		return fmt.Errorf("failed to exchange code for tokens: %w", err)
	}

	email, err := oauthFlow.AccountEmail(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to read account address: %w", err)
	}

	switch err := accountService.Link(ctx, email, token); {
	case errors.Is(err, domain.ErrAccountExists):
		if err := accountService.Relink(ctx, email, token); err != nil {
			return fmt.Errorf("failed to update credential: %w", err)
		}
		cmd.Printf("Updated credential for %s\n", email)
		return nil
	case err != nil:
		return fmt.Errorf("failed to link account: %w", err)
	}

	cmd.Printf("Linked account: %s\n", email)
	cmd.Println("Run 'mailmirror sync' to build the mirror.")
	return nil
}

func runAccountList(cmd *cobra.Command, _ []string) error {
	if accountService == nil {
		return errors.New("account service not configured")
	}

	accounts, err := accountService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	if len(accounts) == 0 {
		cmd.Println("No linked accounts.")
		return nil
	}

	p := newPrinter(cmd)
	p.line("Linked accounts:")
	p.line("")
	for i := range accounts {
		a := &accounts[i]
		status := p.styles.Success.Render("sync enabled")
		if !a.SyncEnabled {
			status = p.styles.Muted.Render("sync disabled")
		}
		p.line("  %s  %s", p.styles.Subtitle.Render(a.UserID), status)
		p.line("    Last sync: %s", joinNonEmpty(formatTime(a.LastSyncedAt), string(a.LastOutcome)))
		if a.LastError != "" {
			p.line("    Last error: %s", p.styles.Error.Render(a.LastError))
		}
		if !a.HasCursor() {
			p.line("    %s", p.styles.Muted.Render("not synced yet"))
		}
		p.line("")
	}
	return nil
}

func runAccountRemove(cmd *cobra.Command, args []string) error {
	if accountService == nil {
		return errors.New("account service not configured")
	}

	if err := accountService.Unlink(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}

	cmd.Printf("Removed account: %s\n", args[0])
	return nil
}

func setAccountSync(cmd *cobra.Command, userID string, enabled bool) error {
	if accountService == nil {
		return errors.New("account service not configured")
	}

	if err := accountService.SetSyncEnabled(cmd.Context(), userID, enabled); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	cmd.Printf("Sync %s for %s\n", state, userID)
	return nil
}
