package app

import (
	"context"
	"sync"

	"github.com/mselser95/market-sdk/internal/watcher"
	"github.com/mselser95/market-sdk/pkg/config"
	"github.com/mselser95/market-sdk/pkg/healthprobe"
	"github.com/mselser95/market-sdk/pkg/httpserver"
	"github.com/mselser95/market-sdk/pkg/wallet"
	"go.uber.org/zap"
)

// App is the long-running serve orchestrator: the HTTP API, the order event
// watcher and the account tracker around one SDK.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	sdk           *SDK
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	watcher       *watcher.Watcher // nil when no contracts are watched
	tracker       *wallet.Tracker  // nil when no account is configured
	closeWatchRPC func()
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}
