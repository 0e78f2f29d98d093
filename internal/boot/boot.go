// Package boot implements the kernel entry sequence: validate the
// BootInfo record handed in by the packer, register available memory
// with the global allocator, create the initial tasks and threads,
// enable the scheduler, and hand control to the init program. Any
// failure here is fatal; apart from syscall.Table.Register (on a
// duplicate or out-of-range call number), this package is the only
// place in the kernel core that panics.
package boot

import (
	"fmt"
	"unsafe"

	"github.com/OsirisRTOS/osiris-sub000/internal/alloc"
	"github.com/OsirisRTOS/osiris-sub000/internal/bootinfo"
	"github.com/OsirisRTOS/osiris-sub000/internal/klog"
	"github.com/OsirisRTOS/osiris-sub000/internal/kmodule"
	"github.com/OsirisRTOS/osiris-sub000/internal/ktask"
	"github.com/OsirisRTOS/osiris-sub000/internal/machine"
	"github.com/OsirisRTOS/osiris-sub000/internal/sched"
)

// TaskSpec describes one task to create during bring-up: its memory
// budget, the threads it starts with, and whether it runs as the
// kernel's own init task or as a user task.
type TaskSpec struct {
	Kind    ktask.TaskKind
	Memory  uintptr
	Threads []ThreadSpec
}

// ThreadSpec describes one thread within a TaskSpec.
type ThreadSpec struct {
	Entry     uint32
	Finalizer uint32
	Timing    ktask.Timing
}

// Kernel is the running state produced by Run: the global allocator,
// the scheduler, and the logger every subsystem above boot shares.
type Kernel struct {
	Global  *alloc.Allocator
	Sched   *sched.State
	Log     *klog.Logger
	M       machine.Machine
	Modules *kmodule.Registry
}

// Run executes the boot sequence. addr is the address of the BootInfo
// record as the loader would have passed it to a real entry point;
// raw is that record's bytes, already mapped into this process's
// memory (a real target would instead read raw directly from addr).
// initImage is the init program's bytes, already mapped into this
// process's memory starting at bi.Init.Begin, the same way raw stands
// in for the memory at addr; a real target would instead read them
// directly from that physical address. Run copies bi.Init.Len bytes of
// it into freshly allocated heap memory, computes the entry address as
// that new buffer's base plus bi.Init.EntryOffset, and invokes it
// through the machine's InvokeEntry seam. A bi.Init.Len of zero means
// no init program was packed, and the copy/invoke step is skipped.
//
// Run panics on any validation or resource failure, matching the
// fatal-at-boot propagation policy; every failure after machine init is
// first written to the machine's debug channel as a "[panic]" line.
// modules are registered and initialized, in order, before any task or
// thread is created; a nil or empty slice boots with no modules.
func Run(m machine.Machine, addr uint32, raw, initImage []byte, tasks []TaskSpec, modules []kmodule.Module) *Kernel {
	if err := m.Init(); err != nil {
		panic("machine init failed: " + err.Error())
	}
	log := klog.New(m)

	if err := bootinfo.ValidatePointer(addr); err != nil {
		log.Panic("invalid bootinfo pointer: %v", err)
	}

	bi, err := bootinfo.Decode(raw)
	if err != nil {
		log.Panic("failed to decode bootinfo: %v", err)
	}
	if err := bi.Validate(); err != nil {
		log.Panic("bootinfo validation failed: %v", err)
	}

	global := alloc.New()
	for _, entry := range bi.Available() {
		start := uintptr(entry.Addr)
		end := start + uintptr(entry.Length)
		if err := global.AddRange(start, end); err != nil {
			log.Warn("skipping unusable memory-map entry [0x%x,0x%x): %v", start, end, err)
		}
	}

	registry := kmodule.NewRegistry()
	for _, mod := range modules {
		registry.Register(mod)
	}
	if err := registry.InitAll(); err != nil {
		log.Panic("kernel module init failed: %v", err)
	}

	s := sched.New(m)
	for _, ts := range tasks {
		taskID, err := s.CreateTask(ktask.TaskDescriptor{MemorySize: ts.Memory}, global, ts.Kind)
		if err != nil {
			log.Panic("failed to create task: %v", err)
		}
		for _, th := range ts.Threads {
			if _, err := s.CreateThread(taskID, th.Entry, th.Finalizer, th.Timing); err != nil {
				log.Panic("failed to create thread: %v", err)
			}
		}
	}

	if bi.Init.Len > 0 {
		if uint32(len(initImage)) < bi.Init.Len {
			log.Panic("init image shorter than bootinfo declares: have %d bytes, want %d", len(initImage), bi.Init.Len)
		}
		initPtr, err := global.Malloc(uintptr(bi.Init.Len), alloc.Alignment)
		if err != nil {
			log.Panic("failed to allocate init program memory: %v", err)
		}
		dst := unsafe.Slice((*byte)(unsafe.Pointer(initPtr)), bi.Init.Len)
		copy(dst, initImage[:bi.Init.Len])

		entry := initPtr + uintptr(bi.Init.EntryOffset)
		log.Info("boot complete: %d task(s), invoking init program at entry 0x%x", len(tasks), entry)
		m.InvokeEntry(entry)
	} else {
		log.Info("boot complete: %d task(s), no init program packed", len(tasks))
	}

	return &Kernel{Global: global, Sched: s, Log: log, M: m, Modules: registry}
}

// PanicBanner renders the formatted failure report the propagation
// policy requires at the boot-time boundary: a backtrace, the decoded
// fault status for the three CPU fault classes, and the hardware
// register dump.
func PanicBanner(m machine.Machine, regs machine.Registers, sp, fp uint32) string {
	banner := "kernel panic\n"
	banner += m.Backtrace(sp, fp) + "\n"
	for _, kind := range []machine.FaultKind{machine.FaultMemManage, machine.FaultBusFault, machine.FaultUsageFault} {
		banner += m.FaultStatus(kind) + "\n"
	}
	banner += registerDump(regs)
	return banner
}

func registerDump(r machine.Registers) string {
	return fmt.Sprintf(
		"registers: R0=0x%x R1=0x%x R2=0x%x R3=0x%x R12=0x%x LR=0x%x PC=0x%x xPSR=0x%x",
		r.R0, r.R1, r.R2, r.R3, r.R12, r.LR, r.PC, r.XPSR,
	)
}
