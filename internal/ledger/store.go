// Package ledger memoizes per-order filled-or-cancelled quantities read from
// market contracts. Entries are never refreshed implicitly: callers invalidate
// them once they know the on-chain counter moved.
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// QtySource reads the authoritative counter from the chain.
type QtySource interface {
	QtyFilledOrCancelled(ctx context.Context, contract common.Address, orderHash common.Hash) (*big.Int, error)
}

// Key identifies a ledger entry. Both parts are opaque lowercase hex strings.
type Key struct {
	Contract  string
	OrderHash string
}

// NewKey builds the key for an order on a contract.
func NewKey(contract common.Address, orderHash common.Hash) Key {
	return Key{
		Contract:  strings.ToLower(contract.Hex()),
		OrderHash: strings.ToLower(orderHash.Hex()),
	}
}

// Store is a read-through cache of filled-or-cancelled quantities.
// It is safe for concurrent use.
type Store struct {
	source QtySource
	logger *zap.Logger

	mu      sync.Mutex
	entries map[Key]*big.Int
	// version increases on every invalidation; a fetch started under an older
	// version is returned but not memoized.
	version uint64
}

// New creates an empty Store reading misses from source.
func New(source QtySource, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		source:  source,
		logger:  logger,
		entries: make(map[Key]*big.Int),
	}
}

// GetFilledOrCancelled returns the quantity already filled or cancelled for
// orderHash. A miss costs exactly one backend read; a hit costs none.
func (s *Store) GetFilledOrCancelled(ctx context.Context, contract common.Address, orderHash common.Hash) (*big.Int, error) {
	key := NewKey(contract, orderHash)

	s.mu.Lock()
	if qty, ok := s.entries[key]; ok {
		s.mu.Unlock()
		LedgerHitsTotal.Inc()
		return new(big.Int).Set(qty), nil
	}
	version := s.version
	s.mu.Unlock()

	LedgerMissesTotal.Inc()

	qty, err := s.source.QtyFilledOrCancelled(ctx, contract, orderHash)
	if err != nil {
		return nil, fmt.Errorf("fetch filled or cancelled qty: %w", err)
	}
	if qty == nil {
		qty = new(big.Int)
	}

	s.mu.Lock()
	if s.version == version {
		s.entries[key] = new(big.Int).Set(qty)
		LedgerEntries.Set(float64(len(s.entries)))
	}
	s.mu.Unlock()

	s.logger.Debug("ledger-entry-fetched",
		zap.String("contract", key.Contract),
		zap.String("order-hash", key.OrderHash),
		zap.String("qty", qty.String()))

	return new(big.Int).Set(qty), nil
}

// Invalidate drops the entry for orderHash. Absent entries are ignored.
func (s *Store) Invalidate(contract common.Address, orderHash common.Hash) {
	key := NewKey(contract, orderHash)

	s.mu.Lock()
	delete(s.entries, key)
	s.version++
	LedgerEntries.Set(float64(len(s.entries)))
	s.mu.Unlock()

	LedgerInvalidationsTotal.WithLabelValues("one").Inc()
	s.logger.Debug("ledger-entry-invalidated",
		zap.String("contract", key.Contract),
		zap.String("order-hash", key.OrderHash))
}

// InvalidateAll drops every entry.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	dropped := len(s.entries)
	s.entries = make(map[Key]*big.Int)
	s.version++
	s.mu.Unlock()

	LedgerEntries.Set(0)
	LedgerInvalidationsTotal.WithLabelValues("all").Inc()
	s.logger.Info("ledger-cleared", zap.Int("dropped", dropped))
}

// Len returns the number of memoized entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
