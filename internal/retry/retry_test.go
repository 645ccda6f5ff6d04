package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	errBoom := errors.New("boom")

	err := Do(context.Background(), Attempts(3, 0), "test op", func() error {
		calls++
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsOnSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Unbounded(time.Millisecond), "test op", func() error {
		calls++
		if calls < 4 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestDoPermanentErrorIsNotRetried(t *testing.T) {
	calls := 0
	errFatal := errors.New("fatal")

	err := Do(context.Background(), Unbounded(time.Millisecond), "test op", func() error {
		calls++
		return Permanent(errFatal)
	})

	require.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, Unbounded(time.Millisecond), "test op", func() error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("transient")
	})

	require.Error(t, err)
	assert.LessOrEqual(t, calls, 3)
}

func TestOnceRunsSingleAttempt(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Once(), "test op", func() error {
		calls++
		return errors.New("nope")
	})
	assert.Equal(t, 1, calls)
	assert.True(t, Once().Bounded())
	assert.False(t, Unbounded(time.Second).Bounded())
}
