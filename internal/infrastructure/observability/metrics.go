package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Payment lifecycle metrics
	PaymentsTotal      *prometheus.CounterVec
	TransitionsTotal   *prometheus.CounterVec
	TransitionFailures *prometheus.CounterVec
	VersionConflicts   prometheus.Counter

	// Outbox / publisher metrics
	OutboxEnqueued        prometheus.Counter
	OutboxPublished       prometheus.Counter
	OutboxPublishFailures prometheus.Counter
	OutboxClaimedBatch    prometheus.Histogram

	// Scheduler metrics
	SchedulerPasses  *prometheus.CounterVec
	SchedulerActions *prometheus.CounterVec
	LockContention   prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Gateway metrics
	GatewayRequests *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := prometheus.WrapRegistererWith(nil, reg)

	m := &Metrics{
		PaymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_total",
				Help:      "Total number of payments created, by resulting state",
			},
			[]string{"status"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_transitions_total",
				Help:      "Total number of applied state transitions",
			},
			[]string{"command"},
		),
		TransitionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_transition_failures_total",
				Help:      "Total number of rejected state transitions",
			},
			[]string{"command", "reason"},
		),
		VersionConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_version_conflicts_total",
				Help:      "Total number of optimistic lock conflicts on payment writes",
			},
		),
		OutboxEnqueued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_enqueued_total",
				Help:      "Total number of events written to the outbox",
			},
		),
		OutboxPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_published_total",
				Help:      "Total number of outbox entries published to the bus",
			},
		),
		OutboxPublishFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_publish_failures_total",
				Help:      "Total number of failed publish attempts",
			},
		),
		OutboxClaimedBatch: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "outbox_claimed_batch_size",
				Help:      "Number of entries claimed per publisher pass",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		SchedulerPasses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_passes_total",
				Help:      "Total number of scheduler task passes",
			},
			[]string{"task", "status"},
		),
		SchedulerActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_actions_total",
				Help:      "Total number of transitions applied by the scheduler",
			},
			[]string{"task", "action"},
		),
		LockContention: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_lock_contention_total",
				Help:      "Total number of retry locks skipped because another instance held them",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		GatewayRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_requests_total",
				Help:      "Total number of downstream gateway calls",
			},
			[]string{"gateway", "result"},
		),
	}

	factory.MustRegister(
		m.PaymentsTotal,
		m.TransitionsTotal,
		m.TransitionFailures,
		m.VersionConflicts,
		m.OutboxEnqueued,
		m.OutboxPublished,
		m.OutboxPublishFailures,
		m.OutboxClaimedBatch,
		m.SchedulerPasses,
		m.SchedulerActions,
		m.LockContention,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GatewayRequests,
	)

	return m
}
