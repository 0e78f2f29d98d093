package boot

import (
	"bytes"
	"errors"
	"testing"
	"unsafe"

	"github.com/OsirisRTOS/osiris-sub000/internal/bootinfo"
	"github.com/OsirisRTOS/osiris-sub000/internal/kmodule"
	"github.com/OsirisRTOS/osiris-sub000/internal/ktask"
	"github.com/OsirisRTOS/osiris-sub000/internal/machine"
	"github.com/OsirisRTOS/osiris-sub000/internal/machine/hostsim"
)

type stubModule struct {
	name    string
	initErr error
	inited  bool
}

func (m *stubModule) Name() string { return m.name }
func (m *stubModule) Init() error  { m.inited = true; return m.initErr }
func (m *stubModule) Exit() error  { return nil }

// hostRAM backs sampleBootInfo's available memory-map entry: Run hands
// that range to the allocator, which writes block headers into it, so
// on the host it must be memory this process owns.
var hostRAM = make([]byte, 1<<20+16)

func sampleBootInfo() *bootinfo.BootInfo {
	base := (uintptr(unsafe.Pointer(&hostRAM[0])) + 15) &^ 15
	b := &bootinfo.BootInfo{Magic: bootinfo.Magic, Version: bootinfo.Version, MMapLen: 1}
	b.MMap[0] = bootinfo.MemMapEntry{
		Size: 20, Addr: uint64(base), Length: 1 << 20, Kind: bootinfo.MemKindAvailable,
	}
	b.Init = bootinfo.InitDescriptor{Begin: 0x08010000, Len: 4096, EntryOffset: 0x40}
	return b
}

func TestRunSucceedsWithValidBootInfo(t *testing.T) {
	var out bytes.Buffer
	m := hostsim.New(&out, nil)
	bi := sampleBootInfo()
	raw := bootinfo.Encode(bi)
	initImage := bytes.Repeat([]byte{0xCD}, int(bi.Init.Len))

	tasks := []TaskSpec{
		{
			Kind:   ktask.TaskKindKernel,
			Memory: 64 * 1024,
			Threads: []ThreadSpec{
				{Entry: 0x1000, Finalizer: 0x2000, Timing: ktask.Timing{Period: 10, ExecTime: 2}},
			},
		},
	}

	k := Run(m, 0x1000, raw, initImage, tasks, nil)
	if k.Sched == nil || k.Global == nil {
		t.Fatal("Run returned an incomplete Kernel")
	}
	if out.Len() == 0 {
		t.Fatal("expected at least one log line written to the debug channel")
	}
}

func TestRunPanicsOnNullPointer(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a null bootinfo pointer")
		}
	}()
	m := hostsim.New(&bytes.Buffer{}, nil)
	Run(m, 0, bootinfo.Encode(sampleBootInfo()), nil, nil, nil)
}

func TestRunPanicsOnBadMagic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a corrupt bootinfo record")
		}
	}()
	bi := sampleBootInfo()
	bi.Magic = 0xBAD
	m := hostsim.New(&bytes.Buffer{}, nil)
	Run(m, 0x1000, bootinfo.Encode(bi), nil, nil, nil)
}

func TestRunCopiesInitImageAndInvokesItsEntry(t *testing.T) {
	bi := sampleBootInfo()
	initImage := bytes.Repeat([]byte{0xCD}, int(bi.Init.Len))

	var invoked bool
	var gotEntry uintptr
	m := hostsim.New(&bytes.Buffer{}, nil)
	m.SetInvokeHook(func(entry uintptr) {
		invoked = true
		gotEntry = entry
	})

	Run(m, 0x1000, bootinfo.Encode(bi), initImage, nil, nil)

	if !invoked {
		t.Fatal("expected Run to invoke the init program's entry point")
	}

	base := gotEntry - uintptr(bi.Init.EntryOffset)
	copied := unsafe.Slice((*byte)(unsafe.Pointer(base)), bi.Init.Len)
	if !bytes.Equal(copied, initImage) {
		t.Fatal("copied init image bytes do not match the source image")
	}
}

func TestRunPanicsWhenInitImageShorterThanDeclared(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a truncated init image")
		}
	}()
	bi := sampleBootInfo()
	m := hostsim.New(&bytes.Buffer{}, nil)
	Run(m, 0x1000, bootinfo.Encode(bi), make([]byte, bi.Init.Len-1), nil, nil)
}

func TestRunInitializesModulesBeforeTasks(t *testing.T) {
	bi := sampleBootInfo()
	bi.Init.Len = 0
	m := hostsim.New(&bytes.Buffer{}, nil)
	a := &stubModule{name: "a"}
	b := &stubModule{name: "b"}

	k := Run(m, 0x1000, bootinfo.Encode(bi), nil, nil, []kmodule.Module{a, b})

	if !a.inited || !b.inited {
		t.Fatal("expected Run to initialize every registered module")
	}
	if k.Modules.Len() != 2 {
		t.Fatalf("Kernel.Modules.Len() = %d, want 2", k.Modules.Len())
	}
}

func TestRunPanicsWhenAModuleFailsToInitialize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic when a module fails to initialize")
		}
	}()
	bi := sampleBootInfo()
	bi.Init.Len = 0
	m := hostsim.New(&bytes.Buffer{}, nil)
	Run(m, 0x1000, bootinfo.Encode(bi), nil, nil, []kmodule.Module{
		&stubModule{name: "broken", initErr: errors.New("boom")},
	})
}

func TestPanicBannerIncludesAllFaultClasses(t *testing.T) {
	m := hostsim.New(&bytes.Buffer{}, nil)
	banner := PanicBanner(m, machine.Registers{PC: 0x1234}, 0x2000, 0x2010)
	for _, want := range []string{"memory management fault", "bus fault", "usage fault", "0x1234"} {
		if !bytes.Contains([]byte(banner), []byte(want)) {
			t.Fatalf("banner missing %q:\n%s", want, banner)
		}
	}
}
