package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/mailmirror/internal/config"
	"github.com/custodia-labs/mailmirror/internal/logger"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync every account on a schedule until interrupted",
	Long: `Run the scheduler in the foreground. Every linked account is synced at
start-up and then once per sync.interval.

The config file is watched: interval, global sync switch and log level
changes apply without a restart. When metrics.listen is set, prometheus
metrics are served at /metrics.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

// shutdownTimeout bounds the metrics server drain.
const shutdownTimeout = 5 * time.Second

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Named("daemon")
	g, ctx := errgroup.WithContext(ctx)

	if dc := daemonConfig; dc != nil {
		if dc.ConfigPath != "" && dc.OnReload != nil {
			w := config.NewWatcher(dc.ConfigPath, dc.OnReload, logger.Named("config"))
			g.Go(func() error {
				// A config that cannot be watched only loses hot reload.
				if err := w.Run(ctx); err != nil {
					log.Warn("config watcher stopped", zap.Error(err))
				}
				return nil
			})
		}
		if dc.MetricsListen != "" && dc.Metrics != nil {
			g.Go(func() error { return serveMetrics(ctx, dc.MetricsListen, dc.Metrics, log) })
		}
	}

	log.Info("daemon started", zap.Duration("interval", scheduler.Interval()))
	scheduler.Start(ctx)

	g.Go(func() error {
		<-ctx.Done()
		scheduler.Stop()
		return nil
	})

	err := g.Wait()
	log.Info("daemon stopped")
	return err
}

func serveMetrics(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
