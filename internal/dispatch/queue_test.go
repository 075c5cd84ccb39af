package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int](4, OverflowDropNewest)
	for i := 1; i <= 3; i++ {
		accepted, evicted := q.Push(i)
		require.True(t, accepted)
		require.Zero(t, evicted)
	}
	assert.Equal(t, 3, q.Len())

	for i := 1; i <= 3; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Zero(t, q.Len())
}

func TestQueueDropNewest(t *testing.T) {
	q := NewQueue[int](2, OverflowDropNewest)
	q.Push(1)
	q.Push(2)
	accepted, evicted := q.Push(3)
	assert.False(t, accepted)
	assert.Zero(t, evicted)

	v, _ := q.Pop()
	assert.Equal(t, 1, v)
	v, _ = q.Pop()
	assert.Equal(t, 2, v)
}

func TestQueueDropOldest(t *testing.T) {
	q := NewQueue[int](2, OverflowDropOldest)
	q.Push(1)
	q.Push(2)
	accepted, evicted := q.Push(3)
	assert.True(t, accepted)
	assert.Equal(t, 1, evicted)

	v, _ := q.Pop()
	assert.Equal(t, 2, v)
	v, _ = q.Pop()
	assert.Equal(t, 3, v)
}

func TestQueueBlockUntilPop(t *testing.T) {
	q := NewQueue[int](1, OverflowBlock)
	q.Push(1)

	pushed := make(chan struct{})
	go func() {
		q.Push(2)
		close(pushed)
	}()

	select {
	case <-pushed:
		t.Fatal("push should block while the queue is full")
	case <-time.After(20 * time.Millisecond):
	}

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("push should resume after pop")
	}
	v, _ = q.Pop()
	assert.Equal(t, 2, v)
}

func TestQueueCloseDrainsPending(t *testing.T) {
	q := NewQueue[int](4, OverflowDropNewest)
	q.Push(1)
	q.Push(2)
	q.Close()

	accepted, _ := q.Push(3)
	assert.False(t, accepted)

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueueCloseWakesBlockedPop(t *testing.T) {
	q := NewQueue[int](1, OverflowBlock)
	done := make(chan bool)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("pop should return after close")
	}
}

func TestParseOverflowPolicy(t *testing.T) {
	testCases := []struct {
		input    string
		expected OverflowPolicy
		err      bool
	}{
		{"", OverflowDropOldest, false},
		{"drop_oldest", OverflowDropOldest, false},
		{"DROP_NEWEST", OverflowDropNewest, false},
		{" block ", OverflowBlock, false},
		{"spill", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			p, err := ParseOverflowPolicy(tc.input)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, p)
		})
	}
}
