// Package util provides a lock-free multi-producer collector.
//
// Features and Guarantees:
//
//   - Lock-Free: producers append with atomic compare-and-swap only
//   - Unbounded Size: limited only by available memory
//   - Completion Order: Drain returns items in the order producers finished
//     their Push, not in the order they started
//   - Single Consumer: Drain is meant to be called once all producers are done
//     (after a join barrier); items pushed after Seal are rejected
package util

import (
	"runtime"
	"sync/atomic"
)

// node represents a single element in the collector
type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// Collector is a lock-free multi-producer single-consumer accumulator.
// Implementation uses a linked list of nodes with atomic operations
// for concurrent push operations without locks
type Collector[T any] struct {
	head   atomic.Pointer[node[T]]
	tail   atomic.Pointer[node[T]]
	count  atomic.Int64
	sealed atomic.Bool
}

// NewCollector creates a new, empty collector
func NewCollector[T any]() *Collector[T] {
	// sentinel node (dummy node at the beginning)
	sentinel := &node[T]{}

	c := &Collector[T]{}
	c.head.Store(sentinel)
	c.tail.Store(sentinel)
	return c
}

// Push appends an item. Returns false if the collector is sealed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *Collector[T]) Push(value T) bool {
	if c.sealed.Load() {
		return false
	}

	newNode := &node[T]{value: value}

	var backoff uint8 = 0

	for {
		tailNode := c.tail.Load()

		next := tailNode.next.Load()
		if next == nil {
			// the tail has no next node yet, try to append our node
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// may fail if another producer already advanced the tail
				c.tail.CompareAndSwap(tailNode, newNode)
				c.count.Add(1)
				return true
			}
		} else {
			// help a producer that appended but has not moved the tail yet
			c.tail.CompareAndSwap(tailNode, next)
		}

		// spin first, yield once contention persists
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// Seal rejects all further pushes
func (c *Collector[T]) Seal() {
	c.sealed.Store(true)
}

// Len returns the number of items pushed and not yet drained
func (c *Collector[T]) Len() int {
	return int(c.count.Load())
}

// Drain removes and returns all collected items in completion order.
// It must not run concurrently with another Drain.
func (c *Collector[T]) Drain() []T {
	items := make([]T, 0, c.Len())

	for {
		head := c.head.Load()
		next := head.next.Load()
		if next == nil {
			break
		}

		items = append(items, next.value)

		// next becomes the new sentinel, drop its value for the gc
		var zero T
		next.value = zero
		c.head.Store(next)
		c.count.Add(-1)
	}

	return items
}
