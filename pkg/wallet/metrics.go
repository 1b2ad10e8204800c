package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// FeeTokenBalance tracks the account's fee token balance.
	FeeTokenBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "market_sdk_wallet_fee_token_balance",
		Help: "Fee token balance of the tracked account (raw units)",
	})

	// UnallocatedCollateral tracks free collateral per market contract.
	UnallocatedCollateral = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "market_sdk_wallet_unallocated_collateral",
			Help: "Unallocated collateral pool balance per contract (raw units)",
		},
		[]string{"contract"},
	)

	// OpenPositions tracks position count per market contract.
	OpenPositions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "market_sdk_wallet_open_positions",
			Help: "Open positions per contract",
		},
		[]string{"contract"},
	)

	// TotalOpenPositions tracks positions across all tracked contracts.
	TotalOpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "market_sdk_wallet_total_open_positions",
		Help: "Open positions across all tracked contracts",
	})

	// LastUpdateTimestamp tracks when balances were last refreshed.
	LastUpdateTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "market_sdk_wallet_last_update_timestamp",
		Help: "Unix timestamp of the last successful balance poll",
	})

	// UpdateErrorsTotal tracks failed polls.
	UpdateErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_sdk_wallet_update_errors_total",
		Help: "Total number of failed balance polls",
	})

	// UpdateDuration tracks poll latency.
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "market_sdk_wallet_update_duration_seconds",
		Help:    "Duration of a balance poll",
		Buckets: prometheus.DefBuckets,
	})
)
