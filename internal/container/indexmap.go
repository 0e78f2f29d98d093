// Package container implements the kernel's fixed-capacity collections:
// IndexMap, Vec, Queue and BinaryHeap. None of these allocate
// unboundedly — every growth path returns kernerr.OutOfMemory instead
// of growing past its configured capacity, so the kernel never relies
// on an unbounded Go slice append to mask a real resource limit.
package container

import "github.com/OsirisRTOS/osiris-sub000/internal/kernerr"

// IndexMap is a dense slot map of optional values indexed 0..Cap-1.
type IndexMap[T any] struct {
	slots []*T
}

// NewIndexMap builds an IndexMap with the given fixed capacity.
func NewIndexMap[T any](capacity int) *IndexMap[T] {
	return &IndexMap[T]{slots: make([]*T, capacity)}
}

func (m *IndexMap[T]) Cap() int { return len(m.slots) }

// Get returns the value at i, or ok=false if i is out of range or empty.
func (m *IndexMap[T]) Get(i int) (T, bool) {
	var zero T
	if i < 0 || i >= len(m.slots) || m.slots[i] == nil {
		return zero, false
	}
	return *m.slots[i], true
}

// Insert places v at the explicit index i, overwriting whatever was
// there.
func (m *IndexMap[T]) Insert(i int, v T) error {
	if i < 0 || i >= len(m.slots) {
		return kernerr.New(kernerr.InvalidArgument, "index out of range")
	}
	vv := v
	m.slots[i] = &vv
	return nil
}

// InsertNext places v in the first empty slot and returns its index.
func (m *IndexMap[T]) InsertNext(v T) (int, error) {
	for i := range m.slots {
		if m.slots[i] == nil {
			vv := v
			m.slots[i] = &vv
			return i, nil
		}
	}
	return -1, kernerr.New(kernerr.OutOfMemory, "index map exhausted")
}

// Remove empties slot i and returns what was there, if anything.
func (m *IndexMap[T]) Remove(i int) (T, bool) {
	var zero T
	if i < 0 || i >= len(m.slots) || m.slots[i] == nil {
		return zero, false
	}
	v := *m.slots[i]
	m.slots[i] = nil
	return v, true
}

// Next returns the next occupied index strictly after from, wrapping
// around to the start of the slot space. It returns ok=false if the
// map has no occupied slot at all.
func (m *IndexMap[T]) Next(from int) (int, bool) {
	n := len(m.slots)
	if n == 0 {
		return -1, false
	}
	for step := 1; step <= n; step++ {
		i := (from + step) % n
		if m.slots[i] != nil {
			return i, true
		}
	}
	return -1, false
}
