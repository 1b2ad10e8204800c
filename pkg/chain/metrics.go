package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ChainCallDuration tracks eth_call latency per contract method.
	ChainCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_sdk_chain_call_duration_seconds",
			Help:    "Duration of read-only contract calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// ChainCallErrorsTotal tracks failed contract calls.
	ChainCallErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_sdk_chain_call_errors_total",
			Help: "Total number of failed read-only contract calls",
		},
		[]string{"method"},
	)

	// TransactionsTotal tracks submitted transactions by outcome.
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_sdk_chain_transactions_total",
			Help: "Total number of transactions by method and outcome",
		},
		[]string{"method", "outcome"},
	)
)
