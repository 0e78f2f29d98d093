package ktask

import (
	"unsafe"

	"github.com/OsirisRTOS/osiris-sub000/internal/alloc"
	"github.com/OsirisRTOS/osiris-sub000/internal/container"
	"github.com/OsirisRTOS/osiris-sub000/internal/kernerr"
	"github.com/OsirisRTOS/osiris-sub000/internal/machine/cortexm"
)

const (
	// ThreadCapacity bounds the dense index space ThreadUId.Unique is
	// drawn from — the global thread slot-map's size.
	ThreadCapacity = 32

	// ThreadStackSize is the fixed stack size carved out of a task's
	// arena for every thread.
	ThreadStackSize = 4096
)

// ThreadId identifies a thread within its owning task.
type ThreadId struct {
	Local int
	Owner TaskId
}

// ThreadUId identifies a thread across the whole system.
type ThreadUId struct {
	Unique int
	Tid    ThreadId
}

// RunState is a thread's position in the scheduling state machine.
// Waits is reserved for a future blocking syscall; nothing in this
// kernel currently transitions a thread into it.
type RunState int

const (
	RunStateReady RunState = iota
	RunStateRuns
	RunStateWaits
	RunStateDelayed
)

func (s RunState) String() string {
	switch s {
	case RunStateReady:
		return "ready"
	case RunStateRuns:
		return "runs"
	case RunStateWaits:
		return "waits"
	case RunStateDelayed:
		return "delayed"
	default:
		return "unknown"
	}
}

// Timing is a thread's rate-monotonic schedule: it runs for at most
// ExecTime every Period ticks, with an optional Deadline shorter than
// Period.
type Timing struct {
	Period   uint32
	Deadline uint32
	ExecTime uint32
}

// StackInfo is a thread's stack region and current stack pointer. Top
// and SP are offsets within Bytes rather than absolute machine
// addresses, which keeps stack-frame fabrication and validation
// independent of whatever address width the host happens to run on;
// only a real Cortex-M boot path needs to resolve Bytes to a physical
// address.
type StackInfo struct {
	Bytes []byte
	Top   uint32
	SP    uint32
	Size  uint32
}

// Thread is one schedulable unit of execution within a task.
type Thread struct {
	TUID     ThreadUId
	Timing   Timing
	RunState RunState
	Stack    StackInfo

	// Overruns counts how many times this thread was found still
	// wanting to run at the start of its next period (period <= time
	// already elapsed plus what is already queued ahead of it). The
	// scheduler degrades gracefully rather than trapping on this; the
	// counter exists purely for diagnostics.
	Overruns uint64
}

// fabricateStack allocates ThreadStackSize bytes from arena and writes
// a fresh exception-return frame onto it that resumes at entry and
// falls through to finalizer if entry ever returns.
func fabricateStack(arena *alloc.Allocator, entry, finalizer uint32) (StackInfo, error) {
	ptr, err := arena.Malloc(ThreadStackSize, cortexm.CallAlign)
	if err != nil {
		return StackInfo{}, err
	}
	bytes := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), ThreadStackSize)

	sp, err := cortexm.Fabricate(bytes, ThreadStackSize, entry, finalizer)
	if err != nil {
		return StackInfo{}, err
	}
	return StackInfo{Bytes: bytes, Top: ThreadStackSize, SP: sp, Size: ThreadStackSize}, nil
}

// ThreadRegistry is the kernel-wide thread slot-map, capacity
// ThreadCapacity. Its InsertNext index becomes ThreadUId.Unique.
type ThreadRegistry struct {
	threads *container.IndexMap[*Thread]
}

func NewThreadRegistry() *ThreadRegistry {
	return &ThreadRegistry{threads: container.NewIndexMap[*Thread](ThreadCapacity)}
}

// CreateThread allocates a stack from task's arena, fabricates its
// entry frame, mints a ThreadUId, records the thread in the global
// thread slot-map, and appends its id to the owning task's thread set.
// It deliberately does not touch any ready-to-run scheduling
// structure: inserting a freshly created thread into the ready heap is
// the scheduler's job, done under the scheduler lock.
func (r *ThreadRegistry) CreateThread(task *Task, entry, finalizer uint32, timing Timing) (ThreadUId, error) {
	stack, err := fabricateStack(task.Allocator, entry, finalizer)
	if err != nil {
		return ThreadUId{}, err
	}

	local := task.tidCounter
	task.tidCounter++
	tid := ThreadId{Local: local, Owner: task.ID}

	th := &Thread{RunState: RunStateReady, Timing: timing, Stack: stack}
	unique, err := r.threads.InsertNext(th)
	if err != nil {
		return ThreadUId{}, kernerr.New(kernerr.OutOfMemory, "thread slot-map exhausted")
	}
	th.TUID = ThreadUId{Unique: unique, Tid: tid}

	if err := task.Threads.Push(tid); err != nil {
		r.threads.Remove(unique)
		return ThreadUId{}, err
	}
	return th.TUID, nil
}

// Get returns the thread registered under u.
func (r *ThreadRegistry) Get(u ThreadUId) (*Thread, bool) {
	return r.threads.Get(u.Unique)
}

func (r *ThreadRegistry) Cap() int { return r.threads.Cap() }
