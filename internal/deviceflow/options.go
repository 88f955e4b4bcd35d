package deviceflow

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sleeper blocks for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Option configures the engine
type Option func(*Engine)

// WithMaxWait bounds the total time spent polling
func WithMaxWait(d time.Duration) Option {
	return func(e *Engine) {
		e.maxWait = d
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithSleeper replaces the wait between polls
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) {
		e.sleep = s
	}
}

// WithLogger sets the engine logger
func WithLogger(l log.FieldLogger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
