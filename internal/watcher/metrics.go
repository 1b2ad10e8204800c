package watcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// EventsTotal tracks contract events received by name.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_sdk_watcher_events_total",
			Help: "Total number of order events received",
		},
		[]string{"event"},
	)

	// DecodeErrorsTotal tracks logs that could not be decoded.
	DecodeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_sdk_watcher_decode_errors_total",
		Help: "Total number of order event logs that failed to decode",
	})

	// ResubscribeAttemptsTotal tracks resubscription attempts.
	ResubscribeAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_sdk_watcher_resubscribe_attempts_total",
		Help: "Total number of log subscription attempts after a drop",
	})

	// ResubscribeFailuresTotal tracks failed resubscription attempts.
	ResubscribeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_sdk_watcher_resubscribe_failures_total",
		Help: "Total number of failed log subscription attempts",
	})

	// SubscriptionActive is 1 while a log subscription is live.
	SubscriptionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "market_sdk_watcher_subscription_active",
		Help: "Whether the order event subscription is live",
	})
)
