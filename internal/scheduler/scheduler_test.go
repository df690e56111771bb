package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 9 * * *"))
	assert.NoError(t, ValidateSchedule("*/15 8-18 * * mon-fri"))
	assert.Error(t, ValidateSchedule("every morning"))
	assert.Error(t, ValidateSchedule("0 0 9 * * *"), "seconds field is not accepted")
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	_, err := New("Mars/Olympus", zap.NewNop())
	assert.Error(t, err)
}

func TestAddJobAndList(t *testing.T) {
	s, err := New("UTC", zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.AddJob("batch", "0 9 * * *", func(context.Context) error { return nil }))
	assert.Error(t, s.AddJob("bad", "nope", func(context.Context) error { return nil }))

	s.Start()
	defer s.Stop()

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "batch", jobs[0].Name)
	assert.Equal(t, 9, jobs[0].NextRun.Hour())

	s.RemoveJob("batch")
	assert.Empty(t, s.ListJobs())
}

func TestRunNowAppliesTimeout(t *testing.T) {
	s, err := New("UTC", zap.NewNop())
	require.NoError(t, err)
	s.jobTimeout = 20 * time.Millisecond

	err = s.RunNow(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
