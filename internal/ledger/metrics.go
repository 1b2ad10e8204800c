package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	LedgerHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_sdk_ledger_hits_total",
		Help: "Filled/cancelled lookups served from memory",
	})

	LedgerMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_sdk_ledger_misses_total",
		Help: "Filled/cancelled lookups that read the chain",
	})

	LedgerInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_sdk_ledger_invalidations_total",
			Help: "Ledger invalidations by scope",
		},
		[]string{"scope"},
	)

	LedgerEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "market_sdk_ledger_entries",
		Help: "Number of memoized filled/cancelled entries",
	})
)
