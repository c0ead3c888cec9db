package retry

import (
	"context"
	"time"
)

// Config configures retry behavior
type Config struct {
	MaxAttempts  int           `json:"max_attempts"`
	BaseInterval time.Duration `json:"base_interval"`
}

// DefaultConfig returns the default retry configuration. The base interval
// matches the control plane's usual asynchronous settle time.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		BaseInterval: 1 * time.Second,
	}
}

// Classifier reports whether an error is transient and worth another attempt
type Classifier func(error) bool

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy implements bounded exponential backoff for caller-classified errors
type Policy struct {
	config  Config
	sleep   SleepFunc
	onRetry func(attempt int, delay time.Duration, err error)
}

// NewPolicy creates a new retry policy
func NewPolicy(config Config) *Policy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.BaseInterval < 0 {
		config.BaseInterval = 0
	}

	return &Policy{
		config: config,
		sleep:  sleepContext,
	}
}

// WithSleep replaces the wait function, mostly for tests
func (p *Policy) WithSleep(fn SleepFunc) *Policy {
	clone := *p
	clone.sleep = fn
	return &clone
}

// OnRetry registers a hook invoked before every retry
func (p *Policy) OnRetry(fn func(attempt int, delay time.Duration, err error)) *Policy {
	clone := *p
	clone.onRetry = fn
	return &clone
}

// Config returns the policy configuration
func (p *Policy) Config() Config {
	return p.config
}

// Delay returns the wait before attempt n (0-based). The first attempt never waits.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return p.config.BaseInterval * time.Duration(int64(1)<<uint(attempt))
}

// Do runs fn until it succeeds, returns an error isTransient rejects, or
// MaxAttempts is reached. The last error is returned as-is.
func (p *Policy) Do(ctx context.Context, isTransient Classifier, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < p.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.Delay(attempt)
			if p.onRetry != nil {
				p.onRetry(attempt, delay, lastErr)
			}
			if err := p.sleep(ctx, delay); err != nil {
				return lastErr
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if isTransient == nil || !isTransient(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
