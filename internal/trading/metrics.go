package trading

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// RejectionsTotal tracks orders rejected by a local check.
	RejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_sdk_trading_rejections_total",
			Help: "Total number of operations rejected before submission",
		},
		[]string{"operation", "code"},
	)

	// SubmissionsTotal tracks submitted transactions.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_sdk_trading_submissions_total",
			Help: "Total number of submitted transactions by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// CheckDurationSeconds tracks how long the pre-submit checks take.
	CheckDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_sdk_trading_check_duration_seconds",
			Help:    "Duration of the pre-submit checks",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// JournalErrorsTotal tracks transactions that mined but failed to journal.
	JournalErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_sdk_trading_journal_errors_total",
		Help: "Total number of mined transactions that could not be journaled",
	})
)
