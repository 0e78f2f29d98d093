// Package hostsim implements machine.Machine on top of the development
// host: an io.Writer debug channel, an atomic interrupt-enable flag,
// and a synchronous reschedule callback instead of a real PendSV
// exception. It exists so the kernel core can be developed and tested
// without access to real Cortex-M silicon; internal/machine/cortexm
// supplies the frame-fabrication primitives this backend reuses
// verbatim.
package hostsim

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/OsirisRTOS/osiris-sub000/internal/machine"
	"github.com/OsirisRTOS/osiris-sub000/internal/machine/cortexm"
)

// Machine is a host-simulated target. The zero value is not usable;
// construct with New.
type Machine struct {
	out io.Writer
	mu  sync.Mutex // serializes Print, mirroring the real target's interrupt mask

	interruptsEnabled atomic.Bool

	onReschedule func()
	onInvoke     func(entry uintptr)
}

// New builds a host-simulated machine that writes debug output to out.
// onReschedule is invoked synchronously by TriggerReschedule in place
// of a real software interrupt; it is normally the scheduler's
// sched_enter entry point.
func New(out io.Writer, onReschedule func()) *Machine {
	m := &Machine{out: out, onReschedule: onReschedule}
	m.interruptsEnabled.Store(true)
	return m
}

func (m *Machine) Init() error {
	return nil
}

// Reset restores the interrupt-enable flag to its post-Init default.
// It does not replace the debug sink or the reschedule callback, which
// are fixed for the lifetime of a Machine.
func (m *Machine) Reset() {
	m.interruptsEnabled.Store(true)
}

// Print writes b to the debug channel with interrupts masked for the
// duration, matching the real target's requirement that a print not be
// torn by a concurrent tick or fault.
func (m *Machine) Print(b []byte) (int, error) {
	wasEnabled := m.interruptsEnabled.Load()
	m.InterruptsDisable()
	defer func() {
		if wasEnabled {
			m.InterruptsEnable()
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.out.Write(b)
}

func (m *Machine) InterruptsEnable()  { m.interruptsEnabled.Store(true) }
func (m *Machine) InterruptsDisable() { m.interruptsEnabled.Store(false) }
func (m *Machine) InterruptsEnabled() bool {
	return m.interruptsEnabled.Load()
}

// TriggerReschedule invokes the registered reschedule callback
// synchronously. A real target instead pends an interrupt and returns
// immediately; the simulated, synchronous call is observationally
// equivalent from the caller's point of view since nothing here runs
// concurrently with it.
func (m *Machine) TriggerReschedule() {
	if m.onReschedule != nil {
		m.onReschedule()
	}
}

// SetInvokeHook registers fn to observe every InvokeEntry call; nil
// (the default) makes InvokeEntry a no-op, mirroring TriggerReschedule
// with a nil onReschedule.
func (m *Machine) SetInvokeHook(fn func(entry uintptr)) {
	m.onInvoke = fn
}

// InvokeEntry calls the registered invoke hook with entry in place of
// branching to it, since a fabricated target address has no
// executable code behind it on the host.
func (m *Machine) InvokeEntry(entry uintptr) {
	if m.onInvoke != nil {
		m.onInvoke(entry)
	}
}

// Backtrace walks a fabricated frame at sp and renders it, ignoring fp
// since the simulated target has no true frame-pointer chain to walk
// beyond the one exception frame.
func (m *Machine) Backtrace(sp, fp uint32) string {
	return fmt.Sprintf("sp=0x%08x fp=0x%08x (host simulation: no deeper unwind)", sp, fp)
}

func (m *Machine) FaultStatus(kind machine.FaultKind) string {
	return fmt.Sprintf("%s (simulated, no hardware fault status register)", kind)
}

// FabricateThreadFrame writes an entry frame into stack using the
// cortexm layout and returns the resulting stack pointer offset.
func (m *Machine) FabricateThreadFrame(stack []byte, top, entry, finalizer uint32) (uint32, error) {
	return cortexm.Fabricate(stack, top, entry, finalizer)
}
