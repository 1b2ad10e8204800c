package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application. It returns the journal
// close error, if any; other component errors are only logged.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to signal all components
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Stop the watcher before closing its connection
	if a.watcher != nil {
		err = a.watcher.Close()
		if err != nil {
			a.logger.Error("watcher-close-error", zap.Error(err))
		}
	}
	a.closeWatchRPC()

	// Wait for all goroutines
	a.wg.Wait()

	// Close journal, cache and RPC connection
	closeErr := a.sdk.Close()
	if closeErr != nil {
		a.logger.Error("sdk-close-error", zap.Error(closeErr))
	}

	a.logger.Info("application-shutdown-complete")

	return closeErr
}
