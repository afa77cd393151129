// Package metrics provides Prometheus instrumentation for the drip engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for drip components.
type Registry struct {
	// Engine operation metrics
	StreamsOpened     prometheus.Counter
	StreamsStopped    prometheus.Counter
	Withdrawals       prometheus.Counter
	MessagesStreamed  prometheus.Counter
	AccountsCreated   prometheus.Counter
	OperationFailures *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ActiveStreams     prometheus.Gauge

	// Escrow money-movement metrics (minor units)
	DepositsEscrowed prometheus.Counter
	AmountWithdrawn  prometheus.Counter
	AmountRefunded   prometheus.Counter

	// Event bus metrics
	EventsPublished *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		// Engine operation metrics
		StreamsOpened: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "drip",
				Subsystem: "engine",
				Name:      "streams_opened_total",
				Help:      "Total number of streams opened",
			},
		),

		StreamsStopped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "drip",
				Subsystem: "engine",
				Name:      "streams_stopped_total",
				Help:      "Total number of streams stopped",
			},
		),

		Withdrawals: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "drip",
				Subsystem: "engine",
				Name:      "withdrawals_total",
				Help:      "Total number of successful withdrawals",
			},
		),

		MessagesStreamed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "drip",
				Subsystem: "engine",
				Name:      "messages_streamed_total",
				Help:      "Total number of messages attached to streams",
			},
		),

		AccountsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "drip",
				Subsystem: "engine",
				Name:      "accounts_created_total",
				Help:      "Total number of accounts created",
			},
		),

		OperationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "drip",
				Subsystem: "engine",
				Name:      "operation_failures_total",
				Help:      "Total number of failed operations",
			},
			[]string{"operation", "reason"},
		),

		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "drip",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Time spent executing engine operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		ActiveStreams: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "drip",
				Subsystem: "engine",
				Name:      "active_streams",
				Help:      "Number of streams currently active",
			},
		),

		// Escrow money-movement metrics
		DepositsEscrowed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "drip",
				Subsystem: "escrow",
				Name:      "deposits_total",
				Help:      "Total amount moved into escrow, in minor units",
			},
		),

		AmountWithdrawn: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "drip",
				Subsystem: "escrow",
				Name:      "withdrawn_total",
				Help:      "Total amount withdrawn by recipients, in minor units",
			},
		),

		AmountRefunded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "drip",
				Subsystem: "escrow",
				Name:      "refunded_total",
				Help:      "Total amount refunded to payers on stop, in minor units",
			},
		),

		// Event bus metrics
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "drip",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Total number of events published, by topic",
			},
			[]string{"topic"},
		),

		PublishFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "drip",
				Subsystem: "events",
				Name:      "publish_failures_total",
				Help:      "Total number of event publish failures, by topic",
			},
			[]string{"topic"},
		),
	}
}
