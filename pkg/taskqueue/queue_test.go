package taskqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStartedQueue(t *testing.T, cfg Config) *Queue {
	t.Helper()
	q := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	t.Cleanup(func() {
		q.Stop()
		cancel()
	})
	return q
}

func TestQueue_DispatchNonBlocking(t *testing.T) {
	q := newStartedQueue(t, Config{Workers: 2, QueueSize: 10, MaxAttempts: 1})

	start := time.Now()
	ok := q.TryDispatch(Job{Key: "user-1", Handler: func(ctx context.Context) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	}})
	elapsed := time.Since(start)

	assert.True(t, ok)
	assert.Less(t, elapsed, 10*time.Millisecond, "dispatch must not wait for the handler")
}

func TestQueue_SameKeyRunsInOrder(t *testing.T) {
	q := newStartedQueue(t, Config{Workers: 4, QueueSize: 100, MaxAttempts: 1})

	var mu sync.Mutex
	var results []int
	for i := 1; i <= 5; i++ {
		val := i
		require.True(t, q.TryDispatch(Job{Key: "user-1", Handler: func(ctx context.Context) error {
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			results = append(results, val)
			mu.Unlock()
			return nil
		}}))
	}

	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, results)
}

func TestQueue_RetriesUpToCapThenDrops(t *testing.T) {
	q := newStartedQueue(t, Config{Workers: 1, QueueSize: 10, MaxAttempts: 3, BaseDelay: time.Millisecond})

	var calls int32
	var exhausted atomic.Bool
	q.OnExhausted = func(job Job, err error) {
		exhausted.Store(true)
	}

	require.True(t, q.TryDispatch(Job{Key: "user-1", Handler: func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("smtp down")
	}}))
	q.Stop()

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.True(t, exhausted.Load())
	stats := q.Stats()
	assert.Equal(t, int64(1), stats.TotalExhausted)
	assert.Equal(t, int64(2), stats.TotalRetried)
}

func TestQueue_SucceedsAfterTransientFailure(t *testing.T) {
	q := newStartedQueue(t, Config{Workers: 1, QueueSize: 10, MaxAttempts: 3})

	var calls int32
	require.True(t, q.TryDispatch(Job{Key: "k", Handler: func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) < 2 {
			return errors.New("transient")
		}
		return nil
	}}))
	q.Stop()

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Zero(t, q.Stats().TotalExhausted)
}

func TestQueue_DropsWhenFull(t *testing.T) {
	q := newStartedQueue(t, Config{Workers: 1, QueueSize: 1, MaxAttempts: 1})

	release := make(chan struct{})
	blocking := func(ctx context.Context) error {
		<-release
		return nil
	}

	require.True(t, q.TryDispatch(Job{Key: "k", Handler: blocking}))
	// Give the worker time to pick up the first job so the next one fills the queue.
	time.Sleep(20 * time.Millisecond)
	require.True(t, q.TryDispatch(Job{Key: "k", Handler: blocking}))

	assert.False(t, q.TryDispatch(Job{Key: "k", Handler: blocking}))
	assert.Equal(t, int64(1), q.Stats().TotalDropped)
	close(release)
}

func TestQueue_PanicIsContained(t *testing.T) {
	q := newStartedQueue(t, Config{Workers: 1, QueueSize: 10, MaxAttempts: 1})

	var after atomic.Bool
	require.True(t, q.TryDispatch(Job{Key: "k", Handler: func(ctx context.Context) error {
		panic("boom")
	}}))
	require.True(t, q.TryDispatch(Job{Key: "k", Handler: func(ctx context.Context) error {
		after.Store(true)
		return nil
	}}))
	q.Stop()

	assert.True(t, after.Load(), "worker must survive a panicking job")
}

func TestQueue_DispatchAfterStopIsDropped(t *testing.T) {
	q := newStartedQueue(t, Config{Workers: 1, QueueSize: 10})
	q.Stop()

	assert.False(t, q.TryDispatch(Job{Key: "k", Handler: func(ctx context.Context) error { return nil }}))
}
