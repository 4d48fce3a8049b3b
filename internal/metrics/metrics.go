// Package metrics records sync engine activity for prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

const namespace = "mailmirror"

// Recorder exposes the functions required to update sync metrics.
type Recorder interface {
	RecordRun(result *domain.SyncResult)
}

// Nop returns a recorder that discards everything.
func Nop() Recorder { return nopRecorder{} }

type nopRecorder struct{}

func (nopRecorder) RecordRun(*domain.SyncResult) {}

// SyncMetrics is the prometheus backed Recorder.
type SyncMetrics struct {
	runs      *prometheus.CounterVec
	fallbacks prometheus.Counter
	messages  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewSyncMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_runs_total",
				Help:      "Sync runs by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		fallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_fallbacks_total",
				Help:      "Partial syncs that fell back to a full sync",
			}),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_messages_total",
				Help:      "Messages processed by sync runs",
			},
			[]string{"op"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_run_duration_seconds",
				Help:      "Duration of sync runs",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"mode"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Collectors()...)
	}
	return m
}

// Collectors returns every collector owned by m.
func (m *SyncMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.runs, m.fallbacks, m.messages, m.duration}
}

// RecordRun updates the counters for one finished run.
func (m *SyncMetrics) RecordRun(result *domain.SyncResult) {
	mode := string(result.Mode)
	m.runs.WithLabelValues(mode, string(result.Outcome)).Inc()
	if result.FallbackUsed {
		m.fallbacks.Inc()
	}
	m.messages.WithLabelValues("upserted").Add(float64(result.Upserted))
	m.messages.WithLabelValues("deleted").Add(float64(result.Deleted))
	m.messages.WithLabelValues("skipped").Add(float64(result.Skipped))
	m.messages.WithLabelValues("excluded").Add(float64(result.Excluded))
	m.messages.WithLabelValues("malformed").Add(float64(result.Malformed))
	m.duration.WithLabelValues(mode).Observe(result.Duration.Seconds())
}
