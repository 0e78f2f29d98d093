package container

import "github.com/OsirisRTOS/osiris-sub000/internal/kernerr"

// Vec is an inline array of InlineCap elements plus an optional heap
// tail that grows geometrically. MaxTotal bounds the sum of inline +
// heap capacity; exceeding it
// reports kernerr.OutOfMemory instead of growing without limit, since
// a kernel Vec is always backed by a finite arena in the real system.
type Vec[T any] struct {
	inline    []T
	inlineLen int
	heap      []T // len(heap) is the allocated heap capacity
	heapLen   int
	maxTotal  int
}

// NewVec builds a Vec with inlineCap inline slots and a total capacity
// ceiling of maxTotal (inline + heap). maxTotal must be >= inlineCap.
func NewVec[T any](inlineCap, maxTotal int) *Vec[T] {
	if maxTotal < inlineCap {
		maxTotal = inlineCap
	}
	return &Vec[T]{inline: make([]T, inlineCap), maxTotal: maxTotal}
}

func (v *Vec[T]) Len() int { return v.inlineLen + v.heapLen }

func (v *Vec[T]) Cap() int { return len(v.inline) + len(v.heap) }

// At returns the element at logical index i.
func (v *Vec[T]) At(i int) (T, bool) {
	var zero T
	if i < 0 || i >= v.Len() {
		return zero, false
	}
	if i < v.inlineLen {
		return v.inline[i], true
	}
	return v.heap[i-v.inlineLen], true
}

// AtMut returns a pointer to the element at logical index i so callers
// can mutate in place, mirroring at_mut.
func (v *Vec[T]) AtMut(i int) (*T, bool) {
	if i < 0 || i >= v.Len() {
		return nil, false
	}
	if i < v.inlineLen {
		return &v.inline[i], true
	}
	return &v.heap[i-v.inlineLen], true
}

// Swap exchanges the elements at logical indices i and j.
func (v *Vec[T]) Swap(i, j int) bool {
	pi, ok := v.AtMut(i)
	if !ok {
		return false
	}
	pj, ok := v.AtMut(j)
	if !ok {
		return false
	}
	*pi, *pj = *pj, *pi
	return true
}

// growHeap grows the heap tail's capacity to at least need, using the
// 2*(current+1) geometric rule so a single Push past inline capacity
// triggers exactly one reallocation.
func (v *Vec[T]) growHeap(need int) error {
	if len(v.heap) >= need {
		return nil
	}
	newCap := 2 * (len(v.heap) + 1)
	if newCap < need {
		newCap = need
	}
	if len(v.inline)+newCap > v.maxTotal {
		newCap = v.maxTotal - len(v.inline)
		if newCap < need {
			return kernerr.New(kernerr.OutOfMemory, "vec capacity ceiling reached")
		}
	}
	grown := make([]T, newCap)
	copy(grown, v.heap[:v.heapLen])
	v.heap = grown
	return nil
}

// Reserve ensures at least `additional` more elements can be pushed
// without a further growth.
func (v *Vec[T]) Reserve(additional int) error {
	need := v.Len() + additional - len(v.inline)
	if need <= len(v.heap) {
		return nil
	}
	return v.growHeap(need)
}

// ReserveTotalCapacity ensures the Vec's total capacity is at least
// total.
func (v *Vec[T]) ReserveTotalCapacity(total int) error {
	need := total - len(v.inline)
	if need <= 0 {
		return nil
	}
	return v.growHeap(need)
}

// Push appends v, growing the heap tail exactly once if inline
// capacity is exhausted.
func (v *Vec[T]) Push(val T) error {
	if v.inlineLen < len(v.inline) {
		v.inline[v.inlineLen] = val
		v.inlineLen++
		return nil
	}
	if v.heapLen >= len(v.heap) {
		if err := v.growHeap(v.heapLen + 1); err != nil {
			return err
		}
	}
	v.heap[v.heapLen] = val
	v.heapLen++
	return nil
}

// Remove deletes the element at logical index i, shifting everything
// after it left by one — including across the inline/heap boundary so
// the logical sequence stays contiguous.
func (v *Vec[T]) Remove(i int) (T, bool) {
	var zero T
	n := v.Len()
	if i < 0 || i >= n {
		return zero, false
	}
	removed, _ := v.At(i)
	for j := i; j < n-1; j++ {
		next, _ := v.At(j + 1)
		p, _ := v.AtMut(j)
		*p = next
	}
	if v.heapLen > 0 {
		v.heapLen--
	} else {
		v.inlineLen--
	}
	return removed, true
}
