package dispatch

import "sync"

// Queue is a bounded FIFO ring buffer shared by one producer side and one worker.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	buf      []T
	head     int
	tail     int
	size     int
	closed   bool
	policy   OverflowPolicy
}

// NewQueue creates a bounded ring buffer.
func NewQueue[T any](capacity int, policy OverflowPolicy) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	q := &Queue[T]{
		buf:    make([]T, capacity),
		policy: policy,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Push enqueues an item according to the overflow policy.
// accepted is false when the item itself was rejected; evicted counts older
// items discarded to make room.
func (q *Queue[T]) Push(item T) (accepted bool, evicted int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.closed {
			return false, evicted
		}
		if q.size < len(q.buf) {
			q.buf[q.tail] = item
			q.tail = (q.tail + 1) % len(q.buf)
			q.size++
			q.notEmpty.Signal()
			return true, evicted
		}
		switch q.policy {
		case OverflowBlock:
			q.notFull.Wait()
		case OverflowDropOldest:
			var zero T
			q.buf[q.head] = zero
			q.head = (q.head + 1) % len(q.buf)
			q.size--
			evicted++
		default:
			return false, evicted
		}
	}
}

// Pop dequeues the next item, blocking until one is available.
// Items pushed before Close are still handed out; ok is false once the queue
// is closed and empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.size > 0 {
			item = q.buf[q.head]
			var zero T
			q.buf[q.head] = zero
			q.head = (q.head + 1) % len(q.buf)
			q.size--
			q.notFull.Signal()
			return item, true
		}
		if q.closed {
			return item, false
		}
		q.notEmpty.Wait()
	}
}

// Close stops the queue from accepting new items and wakes every waiter.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	size := q.size
	q.mu.Unlock()
	return size
}
