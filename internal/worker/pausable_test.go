package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() retryConfig {
	return retryConfig{base: time.Millisecond, attempts: 1}
}

func TestPausableTask_StartRunsDoWorkAndStop(t *testing.T) {
	var calls int64
	task := newPausableTask("t", func(ctx context.Context, status *statusBox) error {
		atomic.AddInt64(&calls, 1)
		return nil
	}, fastRetry(), time.Millisecond, 5)

	ctx := context.Background()
	require.True(t, task.Start(ctx))
	assert.True(t, task.Snapshot().Running)

	require.Eventually(t, func() bool { return atomic.LoadInt64(&calls) >= 1 }, time.Second, time.Millisecond)

	require.True(t, task.Stop())
	assert.False(t, task.Snapshot().Running)
}

func TestPausableTask_StartTwiceIsNoop(t *testing.T) {
	task := newPausableTask("t", func(ctx context.Context, status *statusBox) error { return nil }, fastRetry(), time.Millisecond, 5)
	ctx := context.Background()

	require.True(t, task.Start(ctx))
	assert.False(t, task.Start(ctx))
	task.Stop()
}

func TestPausableTask_StopNotRunningIsNoop(t *testing.T) {
	task := newPausableTask("t", func(ctx context.Context, status *statusBox) error { return nil }, fastRetry(), time.Millisecond, 5)
	assert.False(t, task.Stop())
}

func TestPausableTask_PauseStopsFurtherWork(t *testing.T) {
	var calls int64
	task := newPausableTask("t", func(ctx context.Context, status *statusBox) error {
		atomic.AddInt64(&calls, 1)
		return nil
	}, fastRetry(), time.Millisecond, 5)

	ctx := context.Background()
	require.True(t, task.Start(ctx))
	require.Eventually(t, func() bool { return atomic.LoadInt64(&calls) >= 1 }, time.Second, time.Millisecond)

	task.Pause()
	require.True(t, task.WaitUntilPaused(time.Second))

	before := atomic.LoadInt64(&calls)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, atomic.LoadInt64(&calls))

	task.Resume()
	require.Eventually(t, func() bool { return atomic.LoadInt64(&calls) > before }, time.Second, time.Millisecond)

	task.Stop()
}

func TestPausableTask_WaitUntilPausedFalseWhenNotRunning(t *testing.T) {
	task := newPausableTask("t", func(ctx context.Context, status *statusBox) error { return nil }, fastRetry(), time.Millisecond, 5)
	assert.False(t, task.WaitUntilPaused(10*time.Millisecond))
}

func TestPausableTask_FailingDoWorkIncrementsFailed(t *testing.T) {
	task := newPausableTask("t", func(ctx context.Context, status *statusBox) error {
		return assertError{}
	}, fastRetry(), time.Millisecond, 5)

	ctx := context.Background()
	require.True(t, task.Start(ctx))
	require.Eventually(t, func() bool { return task.Snapshot().Failed >= 1 }, time.Second, time.Millisecond)
	task.Stop()
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
