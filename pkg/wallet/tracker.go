// Package wallet tracks the trading account's fee token and collateral pool
// balances and exports them as Prometheus gauges.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// BalanceReader is the slice of the chain client the tracker polls.
type BalanceReader interface {
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	UnallocatedCollateral(ctx context.Context, contract, user common.Address) (*big.Int, error)
	PositionCount(ctx context.Context, contract, user common.Address) (*big.Int, error)
}

// Tracker periodically fetches account balances and updates Prometheus metrics.
type Tracker struct {
	reader       BalanceReader
	address      common.Address
	feeToken     common.Address
	contracts    []common.Address
	pollInterval time.Duration
	logger       *zap.Logger
}

// Config holds tracker configuration.
type Config struct {
	Reader       BalanceReader
	Address      common.Address
	FeeToken     common.Address   // zero skips the fee balance
	Contracts    []common.Address // market contracts whose pools are polled
	PollInterval time.Duration
	Logger       *zap.Logger
}

// Snapshot is one poll's result.
type Snapshot struct {
	FeeBalance *big.Int
	Contracts  map[common.Address]ContractBalance
}

// ContractBalance is the account's state in one market contract's pool.
type ContractBalance struct {
	UnallocatedCollateral *big.Int
	PositionCount         *big.Int
}

// New creates a new account tracker.
func New(cfg *Config) (t *Tracker, err error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Reader == nil {
		return nil, errors.New("reader cannot be nil")
	}

	if cfg.Address == (common.Address{}) {
		return nil, errors.New("address cannot be empty")
	}

	if cfg.PollInterval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}

	return &Tracker{
		reader:       cfg.Reader,
		address:      cfg.Address,
		feeToken:     cfg.FeeToken,
		contracts:    cfg.Contracts,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}, nil
}

// Run starts the tracker polling loop (blocking).
func (t *Tracker) Run(ctx context.Context) (err error) {
	t.logger.Info("wallet-tracker-starting",
		zap.Duration("poll-interval", t.pollInterval),
		zap.String("address", t.address.Hex()),
		zap.Int("contract-count", len(t.contracts)))

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	_, pollErr := t.Poll(ctx)
	if pollErr != nil {
		t.logger.Error("initial-poll-failed", zap.Error(pollErr))
		UpdateErrorsTotal.Inc()
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("wallet-tracker-stopping")
			return ctx.Err()
		case <-ticker.C:
			_, pollErr = t.Poll(ctx)
			if pollErr != nil {
				t.logger.Error("poll-failed", zap.Error(pollErr))
				UpdateErrorsTotal.Inc()
			}
		}
	}
}

// Poll fetches every tracked balance once and updates the gauges.
func (t *Tracker) Poll(ctx context.Context) (snap *Snapshot, err error) {
	start := time.Now()
	defer func() {
		UpdateDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	snap = &Snapshot{
		Contracts: make(map[common.Address]ContractBalance, len(t.contracts)),
	}

	if t.feeToken != (common.Address{}) {
		snap.FeeBalance, err = t.reader.TokenBalance(ctx, t.feeToken, t.address)
		if err != nil {
			return nil, fmt.Errorf("get fee token balance: %w", err)
		}
	}

	for _, contract := range t.contracts {
		collateral, err := t.reader.UnallocatedCollateral(ctx, contract, t.address)
		if err != nil {
			return nil, fmt.Errorf("get collateral for %s: %w", contract.Hex(), err)
		}

		positions, err := t.reader.PositionCount(ctx, contract, t.address)
		if err != nil {
			return nil, fmt.Errorf("get positions for %s: %w", contract.Hex(), err)
		}

		snap.Contracts[contract] = ContractBalance{
			UnallocatedCollateral: collateral,
			PositionCount:         positions,
		}
	}

	t.updateMetrics(snap)
	LastUpdateTimestamp.Set(float64(time.Now().Unix()))

	t.logger.Debug("poll-complete",
		zap.Int("contract-count", len(snap.Contracts)),
		zap.Duration("duration", time.Since(start)))

	return snap, nil
}

// updateMetrics updates Prometheus gauges with the snapshot. Values are raw
// token units; big values lose precision as float64.
func (t *Tracker) updateMetrics(snap *Snapshot) {
	if snap.FeeBalance != nil {
		FeeTokenBalance.Set(toFloat(snap.FeeBalance))
	}

	total := 0.0
	for contract, bal := range snap.Contracts {
		label := contract.Hex()
		UnallocatedCollateral.WithLabelValues(label).Set(toFloat(bal.UnallocatedCollateral))
		OpenPositions.WithLabelValues(label).Set(toFloat(bal.PositionCount))
		total += toFloat(bal.PositionCount)
	}
	TotalOpenPositions.Set(total)
}

func toFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
