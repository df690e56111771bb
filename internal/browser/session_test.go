package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("down")

func TestRetryStopsAfterAttempts(t *testing.T) {
	calls := 0
	var seen []int

	err := retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return errDown
	}, func(attempt int, err error) {
		seen = append(seen, attempt)
		assert.ErrorIs(t, err, errDown)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errDown)
	assert.Contains(t, err.Error(), "gave up after 3 attempts")
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestRetryReturnsOnFirstSuccess(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return errDown
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryBackoffIsLinear(t *testing.T) {
	const delay = 20 * time.Millisecond
	var at []time.Time

	start := time.Now()
	_ = retry(context.Background(), 3, delay, func() error {
		at = append(at, time.Now())
		return errDown
	}, nil)

	require.Len(t, at, 3)
	assert.Less(t, at[0].Sub(start), delay, "first attempt is immediate")
	assert.GreaterOrEqual(t, at[1].Sub(at[0]), delay)
	assert.GreaterOrEqual(t, at[2].Sub(at[1]), 2*delay)
	assert.GreaterOrEqual(t, at[2].Sub(start), 3*delay)
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	start := time.Now()
	err := retry(ctx, 5, time.Hour, func() error {
		calls++
		cancel()
		return errDown
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}
