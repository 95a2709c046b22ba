package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRefreshInterval = 30 * time.Second
	maxBackoff             = 30 * time.Second
)

// Refresher is the part of the store the poller drives.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// StartPoller launches a background goroutine that refreshes the store at a
// fixed cadence, backing off while refreshes fail. It returns a channel that
// is closed once the goroutine exits.
func StartPoller(ctx context.Context, store Refresher, interval time.Duration, logger *zap.Logger) <-chan struct{} {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		failures := 0
		for {
			wait := interval
			if failures > 0 {
				wait = calculateBackoff(failures, interval)
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			if err := store.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				failures++
				logger.Debug("background refresh failed",
					zap.Int("failures", failures),
					zap.Duration("next_in", calculateBackoff(failures, interval)),
					zap.Error(err))
				continue
			}
			failures = 0
		}
	}()
	return done
}

// calculateBackoff doubles base for each consecutive failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return min(base, maxBackoff)
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
