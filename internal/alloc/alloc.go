// Package alloc implements a best-fit free-list allocator. A single
// Allocator type serves two roles: the global allocator over physical
// memory ranges handed in by boot info, and the per-task arena
// allocator carved out of one global allocation. Each Allocator owns
// its own spin lock; the global allocator and a task's arena allocator
// are always distinct instances, so malloc/free never nests one
// allocator's lock inside another's.
package alloc

import (
	"unsafe"

	"github.com/OsirisRTOS/osiris-sub000/internal/kernerr"
	"github.com/OsirisRTOS/osiris-sub000/internal/ksync"
)

const (
	// Alignment is the allocator's native alignment: 16 bytes, the
	// width of a 128-bit word.
	Alignment = 16
)

const (
	ptrWidth      = unsafe.Sizeof(uintptr(0))
	rawHeaderSize = 2 * ptrWidth
	headerPad     = (Alignment - rawHeaderSize%Alignment) % Alignment
)

// blockHeader sits at the low end of every free block. Its size is
// padded to a multiple of Alignment so that header address + headerSize
// is always itself Alignment-aligned whenever the header address is —
// which means malloc never needs to insert extra alignment padding
// after the header for any request at align<=16. The padding field
// comes first: Go pads a struct whose last field has zero size, which
// would push the header past a multiple of Alignment on 64-bit hosts.
type blockHeader struct {
	_    [headerPad]byte
	size uintptr
	next *blockHeader
}

const headerSize = unsafe.Sizeof(blockHeader{})

func roundUp(n, mult uintptr) uintptr {
	if r := n % mult; r != 0 {
		n += mult - r
	}
	return n
}

func headerAt(addr uintptr) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(addr))
}

func addrOf(h *blockHeader) uintptr {
	return uintptr(unsafe.Pointer(h))
}

// Allocator is a best-fit free-list allocator over one or more
// registered memory ranges.
type Allocator struct {
	lock     ksync.SpinLock
	freeList *blockHeader
}

// New returns an empty allocator with no registered ranges.
func New() *Allocator {
	return &Allocator{}
}

// Reset discards every registered range and outstanding allocation,
// returning the allocator to its New() state. Meant for rebuilding a
// clean kernel between test cases or a boot retry, not for reclaiming
// memory from a live task.
func (a *Allocator) Reset() {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.freeList = nil
}

// AddRange registers [start, end) as donated memory, becoming a single
// free block prepended to the free list.
func (a *Allocator) AddRange(start, end uintptr) error {
	if start%Alignment != 0 {
		return kernerr.New(kernerr.InvalidAlignment, "range start must be 16-byte aligned")
	}
	if end <= start+headerSize {
		return kernerr.New(kernerr.InvalidSize, "range too small to host a block header")
	}
	a.lock.Lock()
	defer a.lock.Unlock()

	h := headerAt(start)
	h.size = uintptr(end - start - headerSize)
	h.next = a.freeList
	a.freeList = h
	return nil
}

// Malloc returns a pointer to an uninitialized block of at least size
// bytes, aligned to Alignment. align must not exceed Alignment.
func (a *Allocator) Malloc(size, align uintptr) (uintptr, error) {
	if align > Alignment {
		return 0, kernerr.New(kernerr.InvalidAlignment, "align exceeds allocator native alignment")
	}
	size = roundUp(size, Alignment)

	a.lock.Lock()
	defer a.lock.Unlock()

	var best, bestPrev *blockHeader
	var prev *blockHeader
	for cur := a.freeList; cur != nil; cur = cur.next {
		if cur.size >= size && (best == nil || cur.size < best.size) {
			best, bestPrev = cur, prev
			if cur.size == size {
				break
			}
		}
		prev = cur
	}
	if best == nil {
		return 0, kernerr.New(kernerr.OutOfMemory, "no free block fits requested size")
	}

	// Remove best from the list; splice tail back in if we split.
	remainder := best.size - size
	if remainder > headerSize {
		tailAddr := addrOf(best) + headerSize + size
		tail := headerAt(tailAddr)
		tail.size = remainder - headerSize
		tail.next = best.next
		if bestPrev == nil {
			a.freeList = tail
		} else {
			bestPrev.next = tail
		}
		best.size = size
	} else {
		if bestPrev == nil {
			a.freeList = best.next
		} else {
			bestPrev.next = best.next
		}
	}

	return addrOf(best) + headerSize, nil
}

// Free returns a previously allocated block to the free list. size
// must be the exact size passed to the Malloc call that produced ptr;
// a mismatch corrupts the free list and is a caller defect that this
// implementation does not attempt to detect beyond its own
// invariants.
func (a *Allocator) Free(ptr, size uintptr) error {
	if ptr == 0 {
		return kernerr.New(kernerr.InvalidAddress, "free of nil pointer")
	}
	headerAddr := ptr - headerSize

	a.lock.Lock()
	defer a.lock.Unlock()

	h := headerAt(headerAddr)
	h.size = roundUp(size, Alignment)
	h.next = a.freeList
	a.freeList = h
	return nil
}

// FreeBlockCount walks the free list and returns how many blocks are
// currently free, for tests asserting on list shape.
func (a *Allocator) FreeBlockCount() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	n := 0
	for cur := a.freeList; cur != nil; cur = cur.next {
		n++
	}
	return n
}

// FreeBytes returns the sum of user-visible bytes (excluding header
// overhead) across every free block.
func (a *Allocator) FreeBytes() uintptr {
	a.lock.Lock()
	defer a.lock.Unlock()
	var total uintptr
	for cur := a.freeList; cur != nil; cur = cur.next {
		total += cur.size
	}
	return total
}
