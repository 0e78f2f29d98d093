package alloc

import (
	"testing"
	"unsafe"

	"github.com/OsirisRTOS/osiris-sub000/internal/kernerr"
)

// backing returns a byte slice whose base address is 16-byte aligned,
// simulating a physical memory range donated by boot info.
func backing(t *testing.T, size uintptr) (start, end uintptr, keepAlive []byte) {
	t.Helper()
	buf := make([]byte, size+2*Alignment)
	base := uintptr(unsafe.Pointer(&buf[0]))
	start = roundUp(base, Alignment)
	end = start + size
	return start, end, buf
}

func TestResetClearsFreeListAndRanges(t *testing.T) {
	a := New()
	start, end, _ := backing(t, 4096)
	if err := a.AddRange(start, end); err != nil {
		t.Fatalf("AddRange: %v", err)
	}
	a.Reset()
	if a.FreeBlockCount() != 0 || a.FreeBytes() != 0 {
		t.Fatalf("after Reset got %d blocks / %d bytes, want 0/0", a.FreeBlockCount(), a.FreeBytes())
	}
	if _, err := a.Malloc(16, Alignment); err == nil {
		t.Fatal("expected Malloc to fail against a reset allocator with no ranges")
	}
}

func TestAddRangeRejectsMisalignedStart(t *testing.T) {
	a := New()
	if err := a.AddRange(1, 4096); err == nil {
		t.Fatal("expected InvalidAlignment for unaligned start")
	} else if k, _ := kernerr.Of(err); k != kernerr.InvalidAlignment {
		t.Fatalf("got %v, want InvalidAlignment", k)
	}
}

func TestSingleRangeProducesOneFreeBlock(t *testing.T) {
	a := New()
	start, end, keep := backing(t, 4096)
	_ = keep
	if err := a.AddRange(start, end); err != nil {
		t.Fatalf("AddRange: %v", err)
	}
	if n := a.FreeBlockCount(); n != 1 {
		t.Fatalf("FreeBlockCount() = %d, want 1", n)
	}
}

func TestMallocTwiceFromOneRangeYieldsDistinctIncreasingAddresses(t *testing.T) {
	a := New()
	start, end, keep := backing(t, 4096)
	_ = keep
	if err := a.AddRange(start, end); err != nil {
		t.Fatalf("AddRange: %v", err)
	}
	p1, err := a.Malloc(128, 1)
	if err != nil {
		t.Fatalf("first Malloc: %v", err)
	}
	p2, err := a.Malloc(128, 1)
	if err != nil {
		t.Fatalf("second Malloc: %v", err)
	}
	if p2 <= p1 {
		t.Fatalf("second allocation address 0x%x must be strictly greater than first 0x%x", p2, p1)
	}
	if p1%Alignment != 0 || p2%Alignment != 0 {
		t.Fatalf("allocations must be 16-byte aligned: 0x%x 0x%x", p1, p2)
	}
}

func TestMallocRejectsOverAlignedRequest(t *testing.T) {
	a := New()
	start, end, keep := backing(t, 4096)
	_ = keep
	a.AddRange(start, end)
	if _, err := a.Malloc(64, 32); err == nil {
		t.Fatal("expected InvalidAlignment for align > 16")
	}
}

func TestMallocOutOfMemory(t *testing.T) {
	a := New()
	start, end, keep := backing(t, 256)
	_ = keep
	a.AddRange(start, end)
	if _, err := a.Malloc(1<<20, 1); err == nil {
		t.Fatal("expected OutOfMemory for request larger than the range")
	}
}

func TestBestFitPicksSmallestSufficientBlock(t *testing.T) {
	a := New()
	// Two disjoint ranges: 512 bytes (496 usable after a 16-byte header)
	// and 96 bytes (80 usable).
	// Best-fit for a 32-byte request should come from the smaller range.
	smallStart, smallEnd, keep1 := backing(t, 96)
	bigStart, bigEnd, keep2 := backing(t, 512)
	_, _ = keep1, keep2
	a.AddRange(bigStart, bigEnd)
	a.AddRange(smallStart, smallEnd)

	p, err := a.Malloc(32, 1)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	if p < smallStart || p >= smallEnd {
		t.Fatalf("best-fit should have used the smaller range containing [0x%x,0x%x), got 0x%x", smallStart, smallEnd, p)
	}
}

func TestMallocFreeRoundTripRestoresFreeBytes(t *testing.T) {
	a := New()
	start, end, keep := backing(t, 4096)
	_ = keep
	a.AddRange(start, end)
	before := a.FreeBytes()

	p, err := a.Malloc(128, Alignment)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	if err := a.Free(p, roundUp(128, Alignment)); err != nil {
		t.Fatalf("Free: %v", err)
	}
	// No coalescing is required, so free bytes may be spread across more
	// blocks, but the total user-visible free byte count (ignoring header
	// overhead of any new block boundary) should match modulo the one
	// extra header introduced by the split.
	after := a.FreeBytes()
	if after > before {
		t.Fatalf("FreeBytes() after round trip = %d, must not exceed pre-allocation %d", after, before)
	}
}

func TestAddRangeTooSmallForHeader(t *testing.T) {
	a := New()
	start, _, keep := backing(t, 4096)
	_ = keep
	if err := a.AddRange(start, start+headerSize); err == nil {
		t.Fatal("expected InvalidSize when range cannot host a header")
	}
}
