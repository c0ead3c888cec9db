package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errInProgress = errors.New("conflicting operation in progress")

func isInProgress(err error) bool {
	return errors.Is(err, errInProgress)
}

// recordingSleep captures requested delays without waiting
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestNewPolicy_Defaults(t *testing.T) {
	p := NewPolicy(Config{})
	assert.Equal(t, 1, p.Config().MaxAttempts)

	p = NewPolicy(DefaultConfig())
	assert.Equal(t, 5, p.Config().MaxAttempts)
	assert.Equal(t, time.Second, p.Config().BaseInterval)
}

func TestPolicy_Delay(t *testing.T) {
	p := NewPolicy(Config{MaxAttempts: 5, BaseInterval: time.Second})

	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))
	assert.Equal(t, 16*time.Second, p.Delay(4))
}

func TestPolicy_SucceedsFirstTry(t *testing.T) {
	rec := &recordingSleep{}
	p := NewPolicy(Config{MaxAttempts: 3, BaseInterval: time.Second}).WithSleep(rec.sleep)

	calls := 0
	err := p.Do(context.Background(), isInProgress, func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestPolicy_RetriesTransientThenSucceeds(t *testing.T) {
	rec := &recordingSleep{}
	p := NewPolicy(Config{MaxAttempts: 5, BaseInterval: 100 * time.Millisecond}).WithSleep(rec.sleep)

	calls := 0
	err := p.Do(context.Background(), isInProgress, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errInProgress
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, rec.delays)
}

func TestPolicy_ExhaustionReturnsLastErrorUnwrapped(t *testing.T) {
	rec := &recordingSleep{}
	p := NewPolicy(Config{MaxAttempts: 4, BaseInterval: time.Second}).WithSleep(rec.sleep)

	transient := fmt.Errorf("delete account assignment: %w", errInProgress)
	calls := 0
	err := p.Do(context.Background(), isInProgress, func(ctx context.Context) error {
		calls++
		return transient
	})

	assert.Equal(t, 4, calls)
	assert.Same(t, transient, err)
	assert.Len(t, rec.delays, 3)
}

func TestPolicy_NonTransientNotRetried(t *testing.T) {
	rec := &recordingSleep{}
	p := NewPolicy(Config{MaxAttempts: 5, BaseInterval: time.Second}).WithSleep(rec.sleep)

	permanent := errors.New("access denied")
	calls := 0
	err := p.Do(context.Background(), isInProgress, func(ctx context.Context) error {
		calls++
		return permanent
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, permanent, err)
	assert.Empty(t, rec.delays)
}

func TestPolicy_NilClassifierNeverRetries(t *testing.T) {
	p := NewPolicy(Config{MaxAttempts: 3})

	calls := 0
	err := p.Do(context.Background(), nil, func(ctx context.Context) error {
		calls++
		return errInProgress
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errInProgress)
}

func TestPolicy_OnRetryHook(t *testing.T) {
	var attempts []int
	p := NewPolicy(Config{MaxAttempts: 3}).
		WithSleep(func(context.Context, time.Duration) error { return nil }).
		OnRetry(func(attempt int, delay time.Duration, err error) {
			attempts = append(attempts, attempt)
			assert.ErrorIs(t, err, errInProgress)
		})

	_ = p.Do(context.Background(), isInProgress, func(ctx context.Context) error {
		return errInProgress
	})

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestPolicy_CanceledContextStopsWaiting(t *testing.T) {
	p := NewPolicy(Config{MaxAttempts: 5, BaseInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := p.Do(ctx, isInProgress, func(ctx context.Context) error {
		calls++
		return errInProgress
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errInProgress)
}
