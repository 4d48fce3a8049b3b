package cli

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mailmirror/internal/adapters/driving/tui"
	"github.com/custodia-labs/mailmirror/internal/config"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driving"
	"github.com/custodia-labs/mailmirror/internal/logger"
)

// skipServices marks commands that run without the sync stack.
const skipServices = "skip-services"

var (
	// Version is set by goreleaser ldflags.
	version = "dev"

	// Verbose enables debug logging.
	verbose bool

	// configPath overrides the default config file.
	configPath string

	// Services holds injected service implementations for CLI commands.
	accountService   driving.AccountService
	syncOrchestrator driving.SyncOrchestrator
	scheduler        driving.Scheduler
	oauthFlow        OAuthFlow
	mirrorEvents     tui.Subscriber
	daemonConfig     *DaemonConfig

	bootstrap Bootstrap
	cleanup   func()
)

// Services holds configuration for CLI commands.
type Services struct {
	Accounts  driving.AccountService
	Sync      driving.SyncOrchestrator
	Scheduler driving.Scheduler
	OAuth     OAuthFlow
	Mirror    tui.Subscriber
	Daemon    *DaemonConfig
	// Close releases what the services hold. Called once after the command.
	Close func()
}

// DaemonConfig holds what only the long-running commands use.
type DaemonConfig struct {
	// ConfigPath is watched for changes; OnReload receives every valid reload.
	ConfigPath string
	OnReload   func(*config.Config)
	// MetricsListen is the address serving Metrics at /metrics. Empty disables it.
	MetricsListen string
	Metrics       http.Handler
}

// Bootstrap builds the services once flags are parsed.
// configPath is empty unless --config was given.
type Bootstrap func(configPath string) (*Services, error)

// SetServices injects service implementations for CLI commands.
func SetServices(s *Services) {
	if s == nil {
		return
	}
	accountService = s.Accounts
	syncOrchestrator = s.Sync
	scheduler = s.Scheduler
	oauthFlow = s.OAuth
	mirrorEvents = s.Mirror
	daemonConfig = s.Daemon
	cleanup = s.Close
}

// SetBootstrap sets the function building services before a command runs.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "mailmirror",
	Short: "Keep a local mirror of your Gmail inbox",
	Long: `mailmirror keeps a local, queryable mirror of one or more Gmail mailboxes.

It syncs incrementally from the Gmail change log, falls back to a full
resync when the change log can no longer be followed, and announces newly
arrived mail to configured notifiers.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if cleanup != nil {
		cleanup()
		cleanup = nil
	}
	return err
}

// SetVersion sets the version string for the CLI.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose debug output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default $"+config.EnvConfigPath+" or ~/.mailmirror/config.toml)")

	// Use PersistentPreRunE to set verbose mode and build services before any command executes
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if cmd.Annotations[skipServices] != "" || bootstrap == nil || accountService != nil {
			return nil
		}
		s, err := bootstrap(configPath)
		if err != nil {
			return err
		}
		SetServices(s)
		return nil
	}
}
