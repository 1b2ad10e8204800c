package app

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mselser95/market-sdk/internal/storage"
	"github.com/mselser95/market-sdk/internal/testutil"
	"github.com/mselser95/market-sdk/internal/watcher"
	"github.com/mselser95/market-sdk/pkg/healthprobe"
)

type refusingSubscriber struct{}

func (refusingSubscriber) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- gethtypes.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}

type failingCloseJournal struct{}

func (failingCloseJournal) RecordTransaction(ctx context.Context, rec *storage.TxRecord) error {
	return nil
}

func (failingCloseJournal) Close() error { return errors.New("journal flush failed") }

func TestRun_StartFailureLogsShutdownError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	cfg := testConfig()
	sdk, err := newSDK(cfg, logger, testutil.NewFakeBackend(), failingCloseJournal{})
	require.NoError(t, err)

	w, err := watcher.New(&watcher.Config{
		Subscriber: refusingSubscriber{},
		Ledger:     sdk.Ledger,
		Contracts:  []common.Address{testContract},
		Logger:     logger,
	})
	require.NoError(t, err)

	healthChecker := healthprobe.New()
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:           cfg,
		logger:        logger,
		sdk:           sdk,
		healthChecker: healthChecker,
		httpServer:    setupHTTPServer(cfg, logger, healthChecker, sdk),
		watcher:       w,
		closeWatchRPC: func() {},
		ctx:           ctx,
		cancel:        cancel,
	}

	err = a.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start watcher")

	entries := logs.FilterMessage("shutdown-after-start-failure").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "journal flush failed", entries[0].ContextMap()["error"])
}
