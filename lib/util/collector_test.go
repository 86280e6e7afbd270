package util

import (
	"runtime"
	"sync"
	"testing"
)

// TestCollectorBasic tests push and drain from a single goroutine
func TestCollectorBasic(t *testing.T) {
	c := NewCollector[int]()

	for i := 0; i < 10; i++ {
		if !c.Push(i) {
			t.Fatalf("Failed to push item %d", i)
		}
	}

	if c.Len() != 10 {
		t.Fatalf("Expected length 10, got %d", c.Len())
	}

	items := c.Drain()
	if len(items) != 10 {
		t.Fatalf("Expected 10 items, got %d", len(items))
	}
	for i, v := range items {
		if v != i {
			t.Errorf("Expected %d at position %d, got %d", i, i, v)
		}
	}

	// Drain again must be empty
	if rest := c.Drain(); len(rest) != 0 {
		t.Errorf("Expected empty drain, got %v", rest)
	}
	if c.Len() != 0 {
		t.Errorf("Expected length 0 after drain, got %d", c.Len())
	}
}

// TestCollectorConcurrentProducers verifies that no item is lost or duplicated
func TestCollectorConcurrentProducers(t *testing.T) {
	c := NewCollector[int]()

	const numProducers = 10
	const itemsPerProducer = 1000

	var wg sync.WaitGroup
	wg.Add(numProducers)

	for p := 0; p < numProducers; p++ {
		go func(producerID int) {
			defer wg.Done()

			base := producerID * itemsPerProducer
			for i := 0; i < itemsPerProducer; i++ {
				if !c.Push(base + i) {
					t.Errorf("Producer %d failed to push item %d", producerID, i)
				}

				// Add some randomness to producer timing
				if i%100 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}

	wg.Wait()

	items := c.Drain()
	if len(items) != numProducers*itemsPerProducer {
		t.Fatalf("Expected %d items, got %d", numProducers*itemsPerProducer, len(items))
	}

	seen := make(map[int]bool, len(items))
	for _, v := range items {
		if seen[v] {
			t.Errorf("Duplicate item received: %d", v)
		}
		seen[v] = true
	}

	// items of a single producer keep their relative order
	last := make(map[int]int)
	for _, v := range items {
		producer := v / itemsPerProducer
		if prev, ok := last[producer]; ok && prev > v {
			t.Fatalf("Producer %d items out of order: %d after %d", producer, v, prev)
		}
		last[producer] = v
	}
}

// TestCollectorSeal verifies that a sealed collector rejects pushes
func TestCollectorSeal(t *testing.T) {
	c := NewCollector[string]()
	c.Push("a")
	c.Seal()

	if c.Push("b") {
		t.Error("Push after Seal should fail")
	}

	items := c.Drain()
	if len(items) != 1 || items[0] != "a" {
		t.Errorf("Expected [a], got %v", items)
	}
}
