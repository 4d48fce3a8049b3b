package cli

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDaemon_RunsSchedulerUntilCancelled(t *testing.T) {
	sched := &mockScheduler{interval: 3 * time.Minute}
	withServices(t, &Services{Scheduler: sched})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := runCLIContext(t, ctx, "daemon")

	require.NoError(t, err)
	started, stopped := sched.counts()
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, stopped)
}

func TestDaemon_BadMetricsAddress(t *testing.T) {
	sched := &mockScheduler{}
	withServices(t, &Services{
		Scheduler: sched,
		Daemon:    &DaemonConfig{MetricsListen: "127.0.0.1:-1", Metrics: http.NotFoundHandler()},
	})

	_, err := runCLIContext(t, context.Background(), "daemon")

	require.Error(t, err)
	_, stopped := sched.counts()
	assert.Equal(t, 1, stopped)
}

func TestDaemon_RequiresScheduler(t *testing.T) {
	withServices(t, &Services{Accounts: newMockAccountService()})

	_, err := runCLI(t, "daemon")

	assert.EqualError(t, err, "scheduler not configured")
}

func TestServeMetrics_ShutsDownWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveMetrics(ctx, "127.0.0.1:0", http.NotFoundHandler(), zap.NewNop()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
