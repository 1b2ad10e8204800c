// Package watcher follows OrderFilled and OrderCancelled events from the
// market contracts and invalidates the matching fill-ledger entries so the
// next read sees the new on-chain quantity.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/mselser95/market-sdk/pkg/chain"
	"go.uber.org/zap"
)

const logBufferSize = 256

// LogSubscriber opens a streaming log filter. *ethclient.Client implements it
// over a websocket or IPC endpoint.
type LogSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- gethtypes.Log) (ethereum.Subscription, error)
}

// Invalidator drops ledger entries. *ledger.Store implements it.
type Invalidator interface {
	Invalidate(contract common.Address, orderHash common.Hash)
	InvalidateAll()
}

// Config holds watcher configuration.
type Config struct {
	Subscriber LogSubscriber
	Ledger     Invalidator
	Contracts  []common.Address
	Reconnect  ReconnectConfig
	Logger     *zap.Logger
}

// Watcher keeps a log subscription open and invalidates ledger entries as
// orders are filled or cancelled.
type Watcher struct {
	subscriber LogSubscriber
	ledger     Invalidator
	query      ethereum.FilterQuery
	reconnect  *reconnector
	logger     *zap.Logger

	logs   chan gethtypes.Log
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new watcher.
func New(cfg *Config) (*Watcher, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Subscriber == nil {
		return nil, errors.New("subscriber cannot be nil")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("ledger cannot be nil")
	}
	if len(cfg.Contracts) == 0 {
		return nil, errors.New("at least one contract is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reconnect := cfg.Reconnect
	if reconnect.InitialDelay <= 0 {
		reconnect = DefaultReconnectConfig()
	}

	return &Watcher{
		subscriber: cfg.Subscriber,
		ledger:     cfg.Ledger,
		query:      FilterQuery(cfg.Contracts),
		reconnect:  newReconnector(reconnect, logger),
		logger:     logger,
		logs:       make(chan gethtypes.Log, logBufferSize),
	}, nil
}

// FilterQuery matches OrderFilled and OrderCancelled on the given contracts.
func FilterQuery(contracts []common.Address) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: contracts,
		Topics: [][]common.Hash{{
			chain.MarketContractABI.Events["OrderFilled"].ID,
			chain.MarketContractABI.Events["OrderCancelled"].ID,
		}},
	}
}

// Start opens the subscription and processes events until ctx is done or
// Close is called. The first subscription must succeed; later drops are
// retried with backoff.
func (w *Watcher) Start(ctx context.Context) error {
	sub, err := w.subscriber.SubscribeFilterLogs(ctx, w.query, w.logs)
	if err != nil {
		return fmt.Errorf("subscribe order events: %w", err)
	}
	SubscriptionActive.Set(1)

	w.logger.Info("watcher-started",
		zap.Int("contract-count", len(w.query.Addresses)))

	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.loop(ctx, sub)

	return nil
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()

	w.logger.Info("watcher-stopped")
	return nil
}

func (w *Watcher) loop(ctx context.Context, sub ethereum.Subscription) {
	defer w.wg.Done()
	defer func() {
		if sub != nil {
			sub.Unsubscribe()
		}
		SubscriptionActive.Set(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-sub.Err():
			sub.Unsubscribe()
			sub = nil
			SubscriptionActive.Set(0)

			w.logger.Warn("order-event-subscription-dropped", zap.Error(err))

			// events emitted while disconnected are lost
			w.ledger.InvalidateAll()

			err = w.reconnect.retry(ctx, func(ctx context.Context) error {
				s, subErr := w.subscriber.SubscribeFilterLogs(ctx, w.query, w.logs)
				if subErr != nil {
					return subErr
				}
				sub = s
				return nil
			})
			if err != nil {
				return
			}
			SubscriptionActive.Set(1)

			// drop anything filled between the drop and the new subscription
			w.ledger.InvalidateAll()

		case lg := <-w.logs:
			w.handleLog(lg)
		}
	}
}

func (w *Watcher) handleLog(lg gethtypes.Log) {
	event, orderHash, err := DecodeOrderEvent(lg)
	if err != nil {
		DecodeErrorsTotal.Inc()
		w.logger.Warn("order-event-decode-failed",
			zap.String("tx-hash", lg.TxHash.Hex()),
			zap.Error(err))
		return
	}

	EventsTotal.WithLabelValues(event).Inc()

	w.ledger.Invalidate(lg.Address, orderHash)

	w.logger.Debug("order-event-received",
		zap.String("event", event),
		zap.String("contract", lg.Address.Hex()),
		zap.String("order-hash", orderHash.Hex()),
		zap.Uint64("block", lg.BlockNumber),
		zap.Bool("removed", lg.Removed))
}

// DecodeOrderEvent returns the event name and order hash carried by an
// OrderFilled or OrderCancelled log.
func DecodeOrderEvent(lg gethtypes.Log) (string, common.Hash, error) {
	if len(lg.Topics) == 0 {
		return "", common.Hash{}, errors.New("log has no topics")
	}

	event, err := chain.MarketContractABI.EventByID(lg.Topics[0])
	if err != nil {
		return "", common.Hash{}, fmt.Errorf("unknown event: %w", err)
	}

	switch event.Name {
	case "OrderFilled":
		values, err := event.Inputs.NonIndexed().Unpack(lg.Data)
		if err != nil {
			return "", common.Hash{}, fmt.Errorf("unpack OrderFilled: %w", err)
		}
		raw, ok := values[len(values)-1].([32]byte)
		if !ok {
			return "", common.Hash{}, errors.New("OrderFilled order hash has unexpected type")
		}
		return event.Name, common.Hash(raw), nil

	case "OrderCancelled":
		// maker, feeRecipient and orderHash are indexed
		if len(lg.Topics) < 4 {
			return "", common.Hash{}, errors.New("OrderCancelled log missing order hash topic")
		}
		return event.Name, lg.Topics[3], nil

	default:
		return "", common.Hash{}, fmt.Errorf("unexpected event %s", event.Name)
	}
}
