package main

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/custodia-labs/mailmirror/internal/adapters/driven/auth"
	"github.com/custodia-labs/mailmirror/internal/adapters/driven/notify"
	"github.com/custodia-labs/mailmirror/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/mailmirror/internal/adapters/driving/cli"
	"github.com/custodia-labs/mailmirror/internal/config"
	"github.com/custodia-labs/mailmirror/internal/connectors/google"
	"github.com/custodia-labs/mailmirror/internal/connectors/google/gmail"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driven"
	"github.com/custodia-labs/mailmirror/internal/core/services"
	"github.com/custodia-labs/mailmirror/internal/logger"
	"github.com/custodia-labs/mailmirror/internal/metrics"
)

var version = "dev"

// natsSetupTimeout bounds stream creation at start-up.
const natsSetupTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)
	defer logger.Sync()

	if err := cli.Execute(); err != nil {
		return 1
	}
	return 0
}

//nolint:funlen // sequential setup of all dependencies
func bootstrap(configPath string) (*cli.Services, error) {
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if !logger.Verbose() {
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			logger.L().Warn("unknown log level", zap.String("level", cfg.Log.Level))
		}
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.Storage.Path, logger.Named("store"))
	if err != nil {
		return nil, err
	}

	// Credentials
	oauth := google.NewOAuthHandler(cfg.Gmail.ClientID, cfg.Gmail.ClientSecret)
	credentials := auth.NewProvider(store, oauth.Config(), logger.Named("auth"))

	// Remote mailbox
	client := gmail.New(&gmail.Config{
		TrackedLabel:     cfg.Sync.TrackedLabel,
		IncludeSpamTrash: cfg.Sync.IncludeSpamTrash,
		PageSize:         cfg.Gmail.PageSize,
		CallTimeout:      cfg.Gmail.CallTimeout.Duration,
		RateLimit: google.RateLimitConfig{
			RequestsPerSecond: cfg.Gmail.RequestsPerSecond,
			BurstSize:         cfg.Gmail.Burst,
		},
	}, credentials, logger.Named("gmail"))

	// Notifiers
	notifiers, closeNotifiers := buildNotifiers(cfg)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	syncMetrics := metrics.NewSyncMetrics(reg)

	orchestrator := services.NewSyncOrchestrator(services.SyncDeps{
		Remote:      client,
		Mirror:      store,
		Cursors:     store,
		Accounts:    store,
		Credentials: credentials,
		Notifier:    notifiers,
		Metrics:     syncMetrics,
	}, services.SyncOptions{
		Enabled:         cfg.Sync.Enabled,
		Concurrency:     cfg.Sync.Concurrency,
		MaxHistoryPages: cfg.Sync.MaxHistoryPages,
		Materializer: services.MaterializerConfig{
			TrackedLabel:     cfg.Sync.TrackedLabel,
			IncludeSpamTrash: cfg.Sync.IncludeSpamTrash,
			BodyLimit:        cfg.Sync.BodyLimit,
			Location:         loc,
		},
	}, logger.Named("sync"))

	accounts := services.NewAccountService(store, store, store, client, logger.Named("accounts"))
	scheduler := services.NewScheduler(orchestrator, cfg.Sync.Interval.Duration, nil, logger.Named("scheduler"))

	return &cli.Services{
		Accounts:  accounts,
		Sync:      orchestrator,
		Scheduler: scheduler,
		OAuth:     oauth,
		Mirror:    store,
		Daemon: &cli.DaemonConfig{
			ConfigPath: configPath,
			OnReload: func(c *config.Config) {
				scheduler.SetInterval(c.Sync.Interval.Duration)
				orchestrator.SetEnabled(c.Sync.Enabled)
				if !logger.Verbose() {
					_ = logger.SetLevel(c.Log.Level)
				}
			},
			MetricsListen: cfg.Metrics.Listen,
			Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		},
		Close: func() {
			closeNotifiers()
			if err := client.Close(); err != nil {
				logger.L().Warn("failed to close gmail client", zap.Error(err))
			}
			if err := store.Close(); err != nil {
				logger.L().Warn("failed to close store", zap.Error(err))
			}
		},
	}, nil
}

// buildNotifiers returns the configured notifiers. A NATS server that cannot
// be reached is logged and skipped so local sync keeps working.
func buildNotifiers(cfg *config.Config) (driven.Notifier, func()) {
	var out notify.Multi
	closer := func() {}

	if cfg.Notify.Log {
		out = append(out, notify.NewLogNotifier(logger.L()))
	}

	if cfg.Notify.NATSURL != "" {
		n, err := notify.NewNATSNotifier(cfg.Notify.NATSURL, cfg.Notify.SubjectPrefix, logger.Named("nats"))
		if err != nil {
			logger.L().Warn("NATS notifier disabled", zap.Error(err))
			return out, closer
		}

		ctx, cancel := context.WithTimeout(context.Background(), natsSetupTimeout)
		defer cancel()
		if err := n.EnsureStream(ctx); err != nil {
			logger.L().Warn("failed to ensure notification stream", zap.Error(err))
		}
		out = append(out, n)
		closer = n.Close
	}

	return out, closer
}
