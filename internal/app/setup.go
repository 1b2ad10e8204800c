package app

import (
	"context"
	"fmt"

	"github.com/mselser95/market-sdk/internal/watcher"
	"github.com/mselser95/market-sdk/pkg/chain"
	"github.com/mselser95/market-sdk/pkg/config"
	"github.com/mselser95/market-sdk/pkg/healthprobe"
	"github.com/mselser95/market-sdk/pkg/httpserver"
	"github.com/mselser95/market-sdk/pkg/wallet"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	sdk, err := NewSDK(ctx, cfg, logger, false)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup sdk: %w", err)
	}

	healthChecker := setupHealthChecker(cfg, sdk)
	httpServer := setupHTTPServer(cfg, logger, healthChecker, sdk)

	a := &App{
		cfg:           cfg,
		logger:        logger,
		sdk:           sdk,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		closeWatchRPC: func() {},
		ctx:           ctx,
		cancel:        cancel,
	}

	if len(cfg.WatchContracts) > 0 {
		err = a.setupWatcher(ctx)
		if err != nil {
			_ = sdk.Close()
			cancel()
			return nil, fmt.Errorf("setup watcher: %w", err)
		}
	}

	a.tracker, err = setupTracker(cfg, logger, sdk)
	if err != nil {
		a.closeWatchRPC()
		_ = sdk.Close()
		cancel()
		return nil, fmt.Errorf("setup tracker: %w", err)
	}

	return a, nil
}

func setupHealthChecker(cfg *config.Config, sdk *SDK) *healthprobe.HealthChecker {
	checker := healthprobe.New()
	checker.AddCheck("chain", func(ctx context.Context) error {
		id, err := sdk.ChainID(ctx)
		if err != nil {
			return err
		}
		if id.Int64() != cfg.ChainID {
			return fmt.Errorf("node reports chain %s, configured %d", id, cfg.ChainID)
		}
		return nil
	})
	return checker
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	sdk *SDK,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Orders:        httpserver.NewOrdersHandler(sdk.Backend, sdk.Ledger, sdk.FeeToken, logger),
	})
}

func (a *App) setupWatcher(ctx context.Context) error {
	eth, err := chain.Dial(ctx, a.cfg.EthWSURL)
	if err != nil {
		return err
	}

	w, err := watcher.New(&watcher.Config{
		Subscriber: eth,
		Ledger:     a.sdk.Ledger,
		Contracts:  a.cfg.WatchAddresses(),
		Reconnect: watcher.ReconnectConfig{
			InitialDelay:      a.cfg.WatcherReconnectInitialDelay,
			MaxDelay:          a.cfg.WatcherReconnectMaxDelay,
			BackoffMultiplier: a.cfg.WatcherReconnectBackoffMult,
			JitterPercent:     watcher.DefaultReconnectConfig().JitterPercent,
		},
		Logger: a.logger,
	})
	if err != nil {
		eth.Close()
		return err
	}

	a.watcher = w
	a.closeWatchRPC = eth.Close
	return nil
}

// setupTracker returns nil when there is no account to track.
func setupTracker(cfg *config.Config, logger *zap.Logger, sdk *SDK) (*wallet.Tracker, error) {
	account, ok := cfg.TrackedAccount()
	if !ok {
		logger.Info("wallet-tracker-disabled",
			zap.String("reason", "neither WALLET_ADDRESS nor PRIVATE_KEY is set"))
		return nil, nil
	}

	return wallet.New(&wallet.Config{
		Reader:       sdk.Backend,
		Address:      account,
		FeeToken:     sdk.FeeToken,
		Contracts:    cfg.WatchAddresses(),
		PollInterval: cfg.WalletPollInterval,
		Logger:       logger,
	})
}
