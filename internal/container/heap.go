package container

import "github.com/OsirisRTOS/osiris-sub000/internal/kernerr"

// BinaryHeap is a fixed-capacity min-heap. Less defines the ordering;
// ties are broken however Less itself breaks them (the
// scheduler's ready heap uses Less to fall back to ThreadUId so
// equal-period threads stay FIFO).
type BinaryHeap[T any] struct {
	data []T
	less func(a, b T) bool
}

// NewBinaryHeap builds an empty heap with the given fixed capacity.
func NewBinaryHeap[T any](capacity int, less func(a, b T) bool) *BinaryHeap[T] {
	return &BinaryHeap[T]{data: make([]T, 0, capacity), less: less}
}

func (h *BinaryHeap[T]) Len() int { return len(h.data) }
func (h *BinaryHeap[T]) Cap() int { return cap(h.data) }

// Peek returns the minimum element without removing it.
func (h *BinaryHeap[T]) Peek() (T, bool) {
	var zero T
	if len(h.data) == 0 {
		return zero, false
	}
	return h.data[0], true
}

// Push inserts v, sifting it up to restore the heap property.
func (h *BinaryHeap[T]) Push(v T) error {
	if len(h.data) >= cap(h.data) {
		return kernerr.New(kernerr.OutOfMemory, "heap at capacity")
	}
	h.data = append(h.data, v)
	h.siftUp(len(h.data) - 1)
	return nil
}

// Pop removes and returns the minimum element.
func (h *BinaryHeap[T]) Pop() (T, bool) {
	var zero T
	n := len(h.data)
	if n == 0 {
		return zero, false
	}
	top := h.data[0]
	last := h.data[n-1]
	h.data = h.data[:n-1]
	if n > 1 {
		h.data[0] = last
		h.siftDown(0)
	}
	return top, true
}

func (h *BinaryHeap[T]) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(h.data[i], h.data[parent]) {
			break
		}
		h.data[i], h.data[parent] = h.data[parent], h.data[i]
		i = parent
	}
}

func (h *BinaryHeap[T]) siftDown(i int) {
	n := len(h.data)
	for {
		left, right := 2*i+1, 2*i+2
		smallest := i
		if left < n && h.less(h.data[left], h.data[smallest]) {
			smallest = left
		}
		if right < n && h.less(h.data[right], h.data[smallest]) {
			smallest = right
		}
		if smallest == i {
			return
		}
		h.data[i], h.data[smallest] = h.data[smallest], h.data[i]
		i = smallest
	}
}
