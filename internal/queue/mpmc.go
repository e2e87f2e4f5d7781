// Package queue provides the lock-free multi-producer multi-consumer ring
// used to hand task and result records between the dispatcher and its
// workers.
package queue

import (
	"errors"
	"runtime"
	"sync/atomic"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

const (
	// Cache line size for padding to prevent false sharing
	cacheLinePadding = 128
	// Spins on a contended slot before yielding the processor
	maxSpinAttempts = 10
)

// slot is a single cell of the ring buffer.
type slot[T any] struct {
	// sequence tells producers and consumers whose turn it is on this cell
	sequence atomic.Uint64
	value    T
	_        [cacheLinePadding - 16]byte
}

// MPMC is a bounded lock-free multi-producer multi-consumer queue.
//
// Consumers never block: TryDequeue reports emptiness instead of waiting,
// which is what lets a worker treat "nothing left" as its exit condition.
type MPMC[T any] struct {
	ring []slot[T]
	mask uint64

	_    [cacheLinePadding]byte
	head atomic.Uint64
	_    [cacheLinePadding - 8]byte
	tail atomic.Uint64
	_    [cacheLinePadding - 8]byte

	closed   atomic.Bool
	capacity int
}

// New creates a queue able to hold at least capacity items.
// The real capacity is rounded up to the next power of two, and is never
// below two: a single-cell ring cannot tell full from empty.
func New[T any](capacity int) *MPMC[T] {
	capacity = nextPowerOfTwo(max(capacity, 2))
	ring := make([]slot[T], capacity)
	for i := range ring {
		ring[i].sequence.Store(uint64(i)) // #nosec G115 -- i is a ring index
	}

	return &MPMC[T]{
		ring:     ring,
		mask:     uint64(capacity - 1), // #nosec G115 -- capacity is positive
		capacity: capacity,
	}
}

// Enqueue appends value to the queue without blocking.
// Returns ErrQueueClosed after Close and ErrQueueFull when every slot is taken.
func (q *MPMC[T]) Enqueue(value T) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}

	spins := 0
	for {
		tail := q.tail.Load()
		s := &q.ring[tail&q.mask]
		diff := int64(s.sequence.Load()) - int64(tail) // #nosec G115 -- sequence comparison

		switch {
		case diff == 0:
			if q.tail.CompareAndSwap(tail, tail+1) {
				s.value = value
				s.sequence.Store(tail + 1)
				return nil
			}
		case diff < 0:
			return ErrQueueFull
		}

		spins = backoff(spins)
	}
}

// TryDequeue removes the oldest item without blocking.
// It returns (zero, false) only when the queue is observed empty; a lost race
// with another consumer is retried rather than reported as emptiness.
// An item whose Enqueue has not returned yet may not be visible.
func (q *MPMC[T]) TryDequeue() (T, bool) {
	var zero T

	spins := 0
	for {
		head := q.head.Load()
		s := &q.ring[head&q.mask]
		diff := int64(s.sequence.Load()) - int64(head+1) // #nosec G115 -- sequence comparison

		switch {
		case diff == 0:
			if q.head.CompareAndSwap(head, head+1) {
				value := s.value
				s.value = zero
				// hand the cell back to producers one lap later
				s.sequence.Store(head + q.mask + 1)
				return value, true
			}
		case diff < 0:
			return zero, false
		}

		spins = backoff(spins)
	}
}

// Drain empties the queue and returns the items in FIFO order.
func (q *MPMC[T]) Drain() []T {
	items := make([]T, 0, q.Len())
	for {
		v, ok := q.TryDequeue()
		if !ok {
			return items
		}
		items = append(items, v)
	}
}

// Len returns the approximate number of queued items.
func (q *MPMC[T]) Len() int {
	head := q.head.Load()
	tail := q.tail.Load()
	if tail > head {
		return int(tail - head) // #nosec G115 -- tail > head, bounded by capacity
	}
	return 0
}

// Cap returns the capacity of the ring.
func (q *MPMC[T]) Cap() int {
	return q.capacity
}

// Close seals the queue against further Enqueue calls.
// Items already queued stay available to TryDequeue.
func (q *MPMC[T]) Close() {
	q.closed.Store(true)
}

func backoff(spins int) int {
	spins++
	if spins > maxSpinAttempts {
		runtime.Gosched()
		return 0
	}
	return spins
}

// nextPowerOfTwo returns the next power of 2 >= n
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	if n&(n-1) == 0 {
		return n
	}

	power := 1
	for power < n {
		power *= 2
	}
	return power
}
