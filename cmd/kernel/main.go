// Command kernel is the host-simulated entry point: it decodes a
// BootInfo record (from a file, or a small built-in record when none
// is given), runs the boot sequence, then drives the scheduler with a
// fixed-rate tick loop standing in for the hardware SysTick interrupt.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/OsirisRTOS/osiris-sub000/internal/boot"
	"github.com/OsirisRTOS/osiris-sub000/internal/bootinfo"
	"github.com/OsirisRTOS/osiris-sub000/internal/kmodule"
	"github.com/OsirisRTOS/osiris-sub000/internal/ktask"
	"github.com/OsirisRTOS/osiris-sub000/internal/machine/hostsim"
)

func main() {
	bootinfoPath := flag.String("bootinfo", "", "path to a packed BootInfo record (default: built-in sample)")
	initPath := flag.String("init", "", "path to the init program's raw bytes (default: a zero-filled placeholder sized to match the bootinfo record)")
	ticks := flag.Uint("ticks", 1000, "number of simulated SysTick ticks to run before exiting")
	flag.Parse()

	raw, err := loadBootInfo(*bootinfoPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kernel: %v\n", err)
		os.Exit(1)
	}
	bi, err := bootinfo.Decode(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kernel: %v\n", err)
		os.Exit(1)
	}
	initImage, err := loadInitImage(*initPath, bi.Init.Len)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kernel: %v\n", err)
		os.Exit(1)
	}

	var s *boot.Kernel
	m := hostsim.New(os.Stdout, func() {
		if s != nil {
			s.Sched.SchedEnter(0)
		}
	})
	m.SetInvokeHook(func(entry uintptr) {
		fmt.Printf("kernel: init program entry reached at 0x%x (no native code to run under host simulation)\n", entry)
	})

	spec := []boot.TaskSpec{
		{
			Kind:   ktask.TaskKindKernel,
			Memory: 64 * 1024,
			Threads: []boot.ThreadSpec{
				{Entry: 0x1000, Finalizer: 0x2000, Timing: ktask.Timing{Period: 10, ExecTime: 4}},
				{Entry: 0x3000, Finalizer: 0x4000, Timing: ktask.Timing{Period: 50, ExecTime: 10}},
			},
		},
	}

	modules := []kmodule.Module{
		kmodule.NewSample("sample module A"),
		kmodule.NewSample("sample module B"),
	}

	s = boot.Run(m, 0x1000, raw, initImage, spec, modules)

	for i := uint(0); i < *ticks; i++ {
		s.Sched.Tick()
		time.Sleep(time.Microsecond)
	}
}

func loadBootInfo(path string) ([]byte, error) {
	if path == "" {
		return bootinfo.Encode(builtinBootInfo()), nil
	}
	return os.ReadFile(path)
}

// loadInitImage reads the init program's raw bytes from path, or
// synthesizes a zero-filled placeholder of length want when no path is
// given — enough for Run to exercise the copy-and-invoke step even
// when no real init binary has been built yet.
func loadInitImage(path string, want uint32) ([]byte, error) {
	if path == "" {
		return make([]byte, want), nil
	}
	return os.ReadFile(path)
}

// hostRAM backs the built-in record's available memory-map entry: boot
// hands that range to the allocator, which writes block headers into
// it, so under host simulation it must be memory this process owns.
var hostRAM = make([]byte, 1<<20+16)

func builtinBootInfo() *bootinfo.BootInfo {
	base := (uintptr(unsafe.Pointer(&hostRAM[0])) + 15) &^ 15
	b := &bootinfo.BootInfo{Magic: bootinfo.Magic, Version: bootinfo.Version, MMapLen: 1}
	b.MMap[0] = bootinfo.MemMapEntry{
		Size: 20, Addr: uint64(base), Length: 1 << 20, Kind: bootinfo.MemKindAvailable,
	}
	b.Init = bootinfo.InitDescriptor{Begin: 0x08010000, Len: 4096, EntryOffset: 0x40}
	return b
}
