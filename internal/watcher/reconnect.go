package watcher

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconnectConfig holds the exponential backoff used to resubscribe.
type ReconnectConfig struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterPercent     float64 // 0.2 = 20%
}

// DefaultReconnectConfig returns the backoff used when none is configured.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterPercent:     0.2,
	}
}

// reconnector retries a subscribe function with exponential backoff and jitter.
type reconnector struct {
	config         ReconnectConfig
	logger         *zap.Logger
	currentBackoff time.Duration
	mu             sync.Mutex
}

func newReconnector(cfg ReconnectConfig, logger *zap.Logger) *reconnector {
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	return &reconnector{
		config:         cfg,
		logger:         logger,
		currentBackoff: cfg.InitialDelay,
	}
}

// retry calls connect until it succeeds or ctx is done.
func (r *reconnector) retry(ctx context.Context, connect func(context.Context) error) error {
	for {
		backoff := r.nextBackoff()

		r.logger.Info("attempting-resubscribe",
			zap.Duration("backoff", backoff))

		ResubscribeAttemptsTotal.Inc()

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		err := connect(ctx)
		if err == nil {
			r.reset()
			r.logger.Info("resubscribe-successful")
			return nil
		}

		r.logger.Warn("resubscribe-failed", zap.Error(err))
		ResubscribeFailuresTotal.Inc()

		r.incrementBackoff()
	}
}

func (r *reconnector) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.currentBackoff = r.config.InitialDelay
}

// nextBackoff returns the current backoff with up to JitterPercent added.
func (r *reconnector) nextBackoff() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	jitter := rand.Float64() * r.config.JitterPercent
	return time.Duration(float64(r.currentBackoff) * (1.0 + jitter))
}

func (r *reconnector) incrementBackoff() {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := time.Duration(float64(r.currentBackoff) * r.config.BackoffMultiplier)
	if next > r.config.MaxDelay {
		next = r.config.MaxDelay
	}
	r.currentBackoff = next
}
