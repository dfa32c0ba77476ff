package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Attempt outcomes used as metric labels.
const (
	OutcomeSuccess   = "success"
	OutcomeSkipped   = "skipped"
	OutcomeTransport = "transport_error"
	OutcomeFormat    = "format_error"
	OutcomeFallback  = "fallback_status"
	OutcomeTerminal  = "terminal_status"
)

// DispatchMetrics collects dispatcher metrics.
type DispatchMetrics interface {
	RecordAttempt(provider, outcome string, duration time.Duration)
	RecordSkip(provider string)
	RecordFallback(provider string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordAttempt(string, string, time.Duration) {}
func (NopMetrics) RecordSkip(string)                           {}
func (NopMetrics) RecordFallback(string)                       {}

// PromMetrics is a Prometheus-backed DispatchMetrics.
type PromMetrics struct {
	attempts  *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewPromMetrics creates the collectors and registers them on reg.
func NewPromMetrics(namespace string, reg prometheus.Registerer) (*PromMetrics, error) {
	m := &PromMetrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_attempts_total",
				Help:      "Provider attempts by outcome",
			},
			[]string{"provider", "outcome"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_fallbacks_total",
				Help:      "Replies served by a provider other than the requested one",
			},
			[]string{"provider"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_attempt_duration_seconds",
				Help:      "Duration of provider HTTP attempts in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
	}

	for _, c := range []prometheus.Collector{m.attempts, m.fallbacks, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *PromMetrics) RecordAttempt(provider, outcome string, duration time.Duration) {
	m.attempts.WithLabelValues(provider, outcome).Inc()
	m.duration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *PromMetrics) RecordSkip(provider string) {
	m.attempts.WithLabelValues(provider, OutcomeSkipped).Inc()
}

func (m *PromMetrics) RecordFallback(provider string) {
	m.fallbacks.WithLabelValues(provider).Inc()
}
