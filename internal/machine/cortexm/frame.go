// Package cortexm documents the ARM Cortex-M exception-return frame as
// pure functions over a stack byte slice. Fabricate writes a frame that
// makes a fresh thread look, from the scheduler's perspective, exactly
// like a thread that was interrupted mid-execution and is about to be
// resumed by an exception return — so the very first dispatch of a
// brand new thread goes through the same code path as every later
// context switch.
//
// Porting to a different Cortex-M variant (or a different architecture
// entirely) means writing a new frame package with this same contract;
// nothing outside this package may assume the word layout below.
package cortexm

import (
	"encoding/binary"

	"github.com/OsirisRTOS/osiris-sub000/internal/kernerr"
)

const (
	// WordBytes is the machine word width. Cortex-M is always 32-bit
	// regardless of the host's own pointer width, so this is a fixed
	// constant rather than unsafe.Sizeof(uintptr(0)).
	WordBytes = 4

	// FrameWords is the total word count of a fabricated frame: the
	// 8-word hardware-stacked frame (R0-R3, R12, LR, PC, xPSR), one
	// word for EXC_RETURN, and the 9-word software-saved frame
	// (R4-R11 plus one alignment word).
	FrameWords = 18
	FrameBytes = FrameWords * WordBytes

	// CallAlign is the stack alignment the AAPCS requires at a public
	// interface boundary, and what the hardware enforces on exception
	// entry.
	CallAlign = 8

	// ThumbBit forces bit 0 of every code address fabricated into a
	// frame; Cortex-M has no ARM instruction set and will fault on an
	// EPSR load that doesn't have it set.
	ThumbBit = uint32(1)

	// XPSRThumbState is the T-bit (bit 24) of xPSR that must be set on
	// every exception return, since Cortex-M cannot execute ARM code.
	XPSRThumbState = uint32(1) << 24

	// ExcReturnThreadPSP selects: return to Thread mode, use the
	// Process Stack Pointer, no floating-point state. This is the only
	// EXC_RETURN encoding the scheduler ever fabricates.
	ExcReturnThreadPSP = uint32(0xFFFFFFFD)
)

// Frame is the decoded form of a fabricated exception frame, named
// field by field for tests and for Backtrace rendering.
type Frame struct {
	XPSR      uint32
	PC        uint32
	LR        uint32
	R12       uint32
	R3        uint32
	R2        uint32
	R1        uint32
	R0        uint32
	ExcReturn uint32
	Align     uint32
	R11       uint32
	R10       uint32
	R9        uint32
	R8        uint32
	R7        uint32
	R6        uint32
	R5        uint32
	R4        uint32
}

// byteOffsets lists, in the order fields appear in Frame, the byte
// offset of each word relative to the frame's final stack pointer
// (i.e. relative to the lowest address of the fabricated frame). This
// is the inverse of push order: a push decrements the stack pointer
// before writing, so the last word pushed ends up at the lowest
// address. The software-saved block is pushed R11 first, ..., R4
// last (so R4 sits at offset 0, right at the final SP), preceded by
// one alignment word pushed just after EXC_RETURN. That alignment word
// is always part of the frame; the extra padding word Fabricate
// reserves when the pre-push SP wasn't already 8-byte aligned lies
// above xPSR, outside the frame. A context restore therefore pops
// R4..R11 off the bottom, skips the alignment word, then falls
// through to the hardware's own exception return which pops R0-R3,
// R12, LR, PC and xPSR in that order.
var byteOffsets = [FrameWords]uint32{
	68, 64, 60, 56, 52, 48, 44, 40, // XPSR, PC, LR, R12, R3, R2, R1, R0
	36,                              // ExcReturn
	32, 28, 24, 20, 16, 12, 8, 4, 0, // Align, R11..R4
}

// Fabricate writes a fresh exception frame into stack, a byte slice
// representing a thread's stack region addressed from stack[0] (the
// lowest address) to stack[len(stack)-1] (the highest). top is the
// byte offset within stack of the initial, pre-push stack pointer —
// normally len(stack). entry is the thread's entry point address
// (without the Thumb bit; Fabricate sets it) and finalizer is the
// address branched to if the thread function ever returns.
//
// It returns the offset within stack of the resulting stack pointer,
// i.e. where the CPU's own SP must be set before first dispatching
// this thread.
func Fabricate(stack []byte, top, entry, finalizer uint32) (uint32, error) {
	if top > uint32(len(stack)) {
		return 0, kernerr.New(kernerr.InvalidSize, "stack top exceeds backing buffer")
	}

	pushStart := top
	if pushStart%CallAlign != 0 {
		pushStart -= WordBytes
	}
	if pushStart < FrameBytes {
		return 0, kernerr.New(kernerr.InvalidSize, "stack too small to hold a fabricated frame")
	}
	sp := pushStart - FrameBytes

	f := Frame{
		XPSR:      XPSRThumbState,
		PC:        entry | ThumbBit,
		LR:        finalizer | ThumbBit,
		ExcReturn: ExcReturnThreadPSP,
	}
	writeFrame(stack, sp, &f)
	return sp, nil
}

// Read decodes the frame whose stack pointer is sp within stack.
func Read(stack []byte, sp uint32) Frame {
	var f Frame
	words := fieldPointers(&f)
	for i, off := range byteOffsets {
		*words[i] = binary.LittleEndian.Uint32(stack[sp+off : sp+off+WordBytes])
	}
	return f
}

func writeFrame(stack []byte, sp uint32, f *Frame) {
	words := fieldPointers(f)
	for i, off := range byteOffsets {
		binary.LittleEndian.PutUint32(stack[sp+off:sp+off+WordBytes], *words[i])
	}
}

func fieldPointers(f *Frame) [FrameWords]*uint32 {
	return [FrameWords]*uint32{
		&f.XPSR, &f.PC, &f.LR, &f.R12, &f.R3, &f.R2, &f.R1, &f.R0,
		&f.ExcReturn, &f.Align,
		&f.R11, &f.R10, &f.R9, &f.R8, &f.R7, &f.R6, &f.R5, &f.R4,
	}
}

// ValidateSP reports whether sp lies within the bounds of a stack
// region [top-size, top], both ends inclusive, rejecting an exchanged stack pointer that
// has run off either end of its thread's stack.
func ValidateSP(sp, top, size uint32) error {
	base := top - size
	if sp < base || sp > top {
		return kernerr.New(kernerr.OutOfBoundsPointer, "stack pointer outside its thread's stack region")
	}
	return nil
}
