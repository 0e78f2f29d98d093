// Package syscall implements the trap-dispatched system-call interface:
// a dense table of handlers indexed by an 8-bit call number, each
// receiving up to four register-sized arguments and returning at most
// one. A supervisor-call instruction traps into the kernel with the
// call number and argument registers already in place; Dispatch is
// what the trap handler invokes once it has recovered them.
package syscall

import (
	"unicode/utf8"

	"github.com/OsirisRTOS/osiris-sub000/internal/machine"
)

// Args is the fixed four-register argument vector every handler
// receives, regardless of how many of its own arguments it actually
// uses.
type Args [4]uint32

// Handler services one system call number. It returns the
// single-register result code delivered back to user code.
type Handler func(args Args) uint32

const (
	Print        = 0
	Reschedule   = 1
	handlerSlots = 2
)

// Errno values returned to user code from the print handler. These are
// not part of the kernerr taxonomy: they cross the syscall boundary as
// plain integers, never as Go error values.
const (
	ErrnoOK          = 0
	ErrnoBadFD       = 1
	ErrnoInvalidUTF8 = 2
	ErrnoFault       = 3
)

// Table is the dense, build-time-populated dispatch table. A zero
// Table has no handlers registered; Register must be called once per
// syscall number before Dispatch can serve it.
type Table struct {
	handlers [handlerSlots]Handler
}

// Register installs fn as the handler for call number n. Registering
// the same number twice is a build-time error in the source system
// this models (the build step that scans for syscall-number tags
// rejects duplicates before the kernel image is even produced); here
// it simply panics, since it can only happen from a programming
// mistake during kernel wiring, never from anything a caller controls
// at runtime.
func (t *Table) Register(n int, fn Handler) {
	if n < 0 || n >= handlerSlots {
		panic("syscall: number out of the dense handler table's range")
	}
	if t.handlers[n] != nil {
		panic("syscall: duplicate handler registration for the same number")
	}
	t.handlers[n] = fn
}

// Dispatch invokes the handler registered for n. It returns ErrnoFault
// if n has no registered handler, matching the nonzero-error-code
// contract at the syscall boundary — nothing here panics or lets a Go
// error cross into user code.
func (t *Table) Dispatch(n int, args Args) uint32 {
	if n < 0 || n >= handlerSlots || t.handlers[n] == nil {
		return ErrnoFault
	}
	return t.handlers[n](args)
}

// NewTable builds a Table with the two required handlers registered:
// print, bound to m's debug channel, and reschedule, bound to m's
// software-interrupt trigger.
func NewTable(m machine.Machine, readUser func(ptr, length uint32) ([]byte, bool)) *Table {
	t := &Table{}
	t.Register(Print, printHandler(m, readUser))
	t.Register(Reschedule, rescheduleHandler(m))
	return t
}

// printHandler implements syscall 0: fd, buffer_ptr, length. readUser
// resolves a user-space pointer and length into a byte slice; it
// reports ok=false for a fault (pointer outside any mapped region),
// which this handler surfaces as ErrnoFault rather than letting it
// escape as a Go panic across the trap boundary.
func printHandler(m machine.Machine, readUser func(ptr, length uint32) ([]byte, bool)) Handler {
	return func(args Args) uint32 {
		fd, ptr, length := args[0], args[1], args[2]
		if fd != 0 {
			return ErrnoBadFD
		}
		b, ok := readUser(ptr, length)
		if !ok {
			return ErrnoFault
		}
		if !utf8.Valid(b) {
			return ErrnoInvalidUTF8
		}
		if _, err := m.Print(b); err != nil {
			return ErrnoFault
		}
		return ErrnoOK
	}
}

// rescheduleHandler implements syscall 1: request a reschedule by
// raising the context-exchange software interrupt.
func rescheduleHandler(m machine.Machine) Handler {
	return func(Args) uint32 {
		m.TriggerReschedule()
		return ErrnoOK
	}
}
