package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"pxfeed/internal/obs"
	"pxfeed/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherSubmitBeforeStart(t *testing.T) {
	d := New(Config{Workers: 1, QueueSize: 1}, nil)
	err := d.Submit(1, func(context.Context) {})
	require.ErrorIs(t, err, exception.ErrDispatchNotStarted)
}

func TestDispatcherPerKeyOrder(t *testing.T) {
	d := New(Config{Workers: 3, QueueSize: 256, Overflow: OverflowBlock}, obs.NewMetrics())
	require.NoError(t, d.Start(t.Context()))

	const perKey = 50
	var (
		mu  sync.Mutex
		got = make(map[uint64][]int)
		wg  sync.WaitGroup
	)
	for i := 0; i < perKey; i++ {
		for key := uint64(0); key < 5; key++ {
			wg.Add(1)
			seq := i
			k := key
			require.NoError(t, d.Submit(k, func(context.Context) {
				defer wg.Done()
				mu.Lock()
				got[k] = append(got[k], seq)
				mu.Unlock()
			}))
		}
	}
	wg.Wait()
	require.NoError(t, d.Close())

	for key := uint64(0); key < 5; key++ {
		require.Len(t, got[key], perKey)
		for i, seq := range got[key] {
			assert.Equal(t, i, seq, "key %d out of order", key)
		}
	}
}

func TestDispatcherStalledShardDoesNotBlockOthers(t *testing.T) {
	d := New(Config{Workers: 2, QueueSize: 8, Overflow: OverflowDropNewest}, nil)
	require.NoError(t, d.Start(t.Context()))
	defer d.Close()

	release := make(chan struct{})
	require.NoError(t, d.Submit(0, func(context.Context) { <-release }))

	ran := make(chan struct{})
	require.NoError(t, d.Submit(1, func(context.Context) { close(ran) }))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task on another shard should run while shard 0 is stalled")
	}
	close(release)
}

func TestDispatcherQueueFull(t *testing.T) {
	metrics := obs.NewMetrics()
	d := New(Config{Workers: 1, QueueSize: 1, Overflow: OverflowDropNewest}, metrics)
	require.NoError(t, d.Start(t.Context()))
	defer d.Close()

	release := make(chan struct{})
	running := make(chan struct{})
	require.NoError(t, d.Submit(0, func(context.Context) {
		close(running)
		<-release
	}))
	<-running

	require.NoError(t, d.Submit(0, func(context.Context) {}))
	err := d.Submit(0, func(context.Context) {})
	require.ErrorIs(t, err, exception.ErrDispatchQueueFull)
	assert.Equal(t, uint64(1), metrics.Snapshot().Drops[obs.DropQueueFull])
	close(release)
}

func TestDispatcherRecoversPanic(t *testing.T) {
	metrics := obs.NewMetrics()
	d := New(Config{Workers: 1, QueueSize: 4}, metrics)
	require.NoError(t, d.Start(t.Context()))

	require.NoError(t, d.Submit(0, func(context.Context) { panic("boom") }))
	ran := make(chan struct{})
	require.NoError(t, d.Submit(0, func(context.Context) { close(ran) }))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker should survive a handler panic")
	}
	require.NoError(t, d.Close())
	assert.Equal(t, uint64(1), metrics.Snapshot().HandlerPanics)
}

func TestDispatcherCloseDrainsAndRejects(t *testing.T) {
	d := New(Config{Workers: 1, QueueSize: 16}, nil)
	require.NoError(t, d.Start(t.Context()))

	var count int
	var mu sync.Mutex
	for range 10 {
		require.NoError(t, d.Submit(7, func(context.Context) {
			mu.Lock()
			count++
			mu.Unlock()
		}))
	}
	require.NoError(t, d.Close())
	assert.Equal(t, 10, count)
	assert.Zero(t, d.Pending())

	err := d.Submit(7, func(context.Context) {})
	require.ErrorIs(t, err, exception.ErrDispatchClosed)
	require.ErrorIs(t, d.Start(t.Context()), exception.ErrDispatchClosed)
}

func TestDispatcherStopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := New(Config{Workers: 2, QueueSize: 4}, nil)
	require.NoError(t, d.Start(ctx))
	cancel()

	require.Eventually(t, func() bool {
		return d.Submit(0, func(context.Context) {}) != nil
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Close())
}

func TestDispatcherZeroConfigDoesNotBlock(t *testing.T) {
	d := New(Config{}, nil)
	assert.Equal(t, OverflowDropOldest, d.cfg.Overflow)

	metrics := obs.NewMetrics()
	d = New(Config{Workers: 1, QueueSize: 1}, metrics)
	require.NoError(t, d.Start(t.Context()))

	var (
		release = make(chan struct{})
		running = make(chan struct{})
	)
	require.NoError(t, d.Submit(1, func(context.Context) {
		close(running)
		<-release
	}))
	<-running

	submitted := make(chan struct{})
	go func() {
		defer close(submitted)
		for i := 0; i < 10; i++ {
			_ = d.Submit(1, func(context.Context) {})
		}
	}()

	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("submit blocked behind a stalled task")
	}
	assert.Equal(t, uint64(9), metrics.Snapshot().Drops[obs.DropQueueFull])

	close(release)
	require.NoError(t, d.Close())
}
