package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("conflict")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("still conflicting")
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, 3, calls)
}

func TestNonRetryableFailsImmediately(t *testing.T) {
	sentinel := errors.New("corrupt metadata")
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return NonRetryable(sentinel)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, 1, calls)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastConfig(), func() error {
		calls++
		cancel()
		return errors.New("conflict")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestNonRetryableNilIsNil(t *testing.T) {
	assert.NoError(t, NonRetryable(nil))
}

func TestInvalidDelayBounds(t *testing.T) {
	cfg := Config{MaxAttempts: 2, InitialDelay: time.Second, MaxDelay: time.Millisecond}
	err := Do(context.Background(), cfg, func() error { return nil })
	require.Error(t, err)
}
