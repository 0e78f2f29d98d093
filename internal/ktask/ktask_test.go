package ktask

import (
	"testing"
	"unsafe"

	"github.com/OsirisRTOS/osiris-sub000/internal/alloc"
	"github.com/OsirisRTOS/osiris-sub000/internal/kernerr"
)

// backing donates a real, 16-byte-aligned byte range to a global
// allocator, mirroring the memory-map registration a boot sequence
// performs.
func backing(t *testing.T, global *alloc.Allocator, size uintptr) []byte {
	t.Helper()
	buf := make([]byte, size+2*alloc.Alignment)
	base := uintptr(unsafe.Pointer(&buf[0]))
	if r := base % alloc.Alignment; r != 0 {
		base += alloc.Alignment - r
	}
	if err := global.AddRange(base, base+size); err != nil {
		t.Fatalf("AddRange: %v", err)
	}
	return buf
}

func TestCreateTaskAssignsDistinctIds(t *testing.T) {
	global := alloc.New()
	backing(t, global, 1<<20)

	reg := NewTaskRegistry()
	id1, err := reg.CreateTask(TaskDescriptor{MemorySize: 4096}, global, TaskKindKernel)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	id2, err := reg.CreateTask(TaskDescriptor{MemorySize: 4096}, global, TaskKindUser)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if id1 == id2 {
		t.Fatal("two tasks must not receive the same TaskId")
	}
	if id1.Kind != TaskKindKernel || id2.Kind != TaskKindUser {
		t.Fatal("task kind must round-trip through CreateTask")
	}
}

func TestTaskRegistryExhaustion(t *testing.T) {
	global := alloc.New()
	backing(t, global, 1<<20)
	reg := NewTaskRegistry()

	for i := 0; i < TaskCapacity; i++ {
		if _, err := reg.CreateTask(TaskDescriptor{MemorySize: 4096}, global, TaskKindUser); err != nil {
			t.Fatalf("CreateTask #%d: %v", i, err)
		}
	}
	if _, err := reg.CreateTask(TaskDescriptor{MemorySize: 4096}, global, TaskKindUser); err == nil {
		t.Fatal("expected OutOfMemory once the task slot-map is full")
	} else if k, _ := kernerr.Of(err); k != kernerr.OutOfMemory {
		t.Fatalf("got %v, want OutOfMemory", k)
	}
}

func TestCreateThreadFabricatesValidStackPointer(t *testing.T) {
	global := alloc.New()
	backing(t, global, 1<<20)

	taskReg := NewTaskRegistry()
	taskID, err := taskReg.CreateTask(TaskDescriptor{MemorySize: 64 * 1024}, global, TaskKindUser)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	task, _ := taskReg.Get(taskID)

	threadReg := NewThreadRegistry()
	tuid, err := threadReg.CreateThread(task, 0x1000, 0x2000, Timing{Period: 10, ExecTime: 2})
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}

	th, ok := threadReg.Get(tuid)
	if !ok {
		t.Fatal("thread not found after CreateThread")
	}
	if th.RunState != RunStateReady {
		t.Fatalf("RunState = %v, want Ready", th.RunState)
	}
	if th.Stack.SP < th.Stack.Top-th.Stack.Size || th.Stack.SP > th.Stack.Top {
		t.Fatalf("fabricated sp %d out of [%d,%d]", th.Stack.SP, th.Stack.Top-th.Stack.Size, th.Stack.Top)
	}
	if tuid.Tid.Owner != taskID {
		t.Fatalf("thread owner = %v, want %v", tuid.Tid.Owner, taskID)
	}

	got, ok := task.Threads.At(0)
	if !ok || got != tuid.Tid {
		t.Fatalf("task.Threads did not record the new thread: %v %v", got, ok)
	}
}

func TestCreateThreadLocalIdsIncrementPerTask(t *testing.T) {
	global := alloc.New()
	backing(t, global, 1<<20)
	taskReg := NewTaskRegistry()
	taskID, _ := taskReg.CreateTask(TaskDescriptor{MemorySize: 64 * 1024}, global, TaskKindUser)
	task, _ := taskReg.Get(taskID)

	threadReg := NewThreadRegistry()
	u1, err := threadReg.CreateThread(task, 0x1000, 0x2000, Timing{Period: 10, ExecTime: 2})
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	u2, err := threadReg.CreateThread(task, 0x1100, 0x2000, Timing{Period: 20, ExecTime: 3})
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	if u1.Tid.Local != 0 || u2.Tid.Local != 1 {
		t.Fatalf("local thread ids = %d, %d, want 0, 1", u1.Tid.Local, u2.Tid.Local)
	}
	if u1.Unique == u2.Unique {
		t.Fatal("global thread slot-map must assign distinct Unique values")
	}
}
