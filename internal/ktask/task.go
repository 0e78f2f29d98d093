// Package ktask models tasks and threads: a task owns one arena carved
// out of the global allocator and a per-task allocator over that
// arena; a thread owns a stack carved out of its task's arena plus a
// fabricated entry frame. Registering a task or thread into its
// respective slot-map is part of creation; inserting a thread into the
// scheduler's ready heap is not — package sched does that separately,
// under its own lock, once a thread is ready to run.
package ktask

import (
	"github.com/OsirisRTOS/osiris-sub000/internal/alloc"
	"github.com/OsirisRTOS/osiris-sub000/internal/container"
	"github.com/OsirisRTOS/osiris-sub000/internal/kernerr"
)

const (
	// TaskCapacity bounds the dense index space TaskId.Index is drawn
	// from.
	TaskCapacity = 8

	// maxThreadsPerTask is the size of a task's inline thread set.
	maxThreadsPerTask = 4
)

// TaskKind distinguishes kernel-owned tasks (created at boot, never by
// user code) from user tasks.
type TaskKind int

const (
	TaskKindUser TaskKind = iota
	TaskKindKernel
)

func (k TaskKind) String() string {
	if k == TaskKindKernel {
		return "kernel"
	}
	return "user"
}

// TaskId tags an index with which task namespace it was drawn from.
type TaskId struct {
	Kind  TaskKind
	Index int
}

// TaskDescriptor is the caller-supplied request behind task creation.
type TaskDescriptor struct {
	MemorySize uintptr
}

// Arena is the contiguous memory range a task's allocator draws from.
type Arena struct {
	Base uintptr
	Size uintptr
}

// Task owns one arena and the per-task allocator over it.
type Task struct {
	ID        TaskId
	Arena     Arena
	Allocator *alloc.Allocator
	Threads   *container.Vec[ThreadId]

	tidCounter int
}

func alignUp(n, mult uintptr) uintptr {
	if r := n % mult; r != 0 {
		n += mult - r
	}
	return n
}

// newTask allocates a fresh arena from global sized to desc.MemorySize
// (rounded up to the allocator's native alignment) and wraps it in a
// per-task best-fit allocator. The returned task's ID is the zero
// value; TaskRegistry.CreateTask fills it in once the task has a slot.
func newTask(desc TaskDescriptor, global *alloc.Allocator) (*Task, error) {
	size := alignUp(desc.MemorySize, alloc.Alignment)
	base, err := global.Malloc(size, alloc.Alignment)
	if err != nil {
		return nil, err
	}

	perTask := alloc.New()
	if err := perTask.AddRange(base, base+size); err != nil {
		return nil, err
	}

	return &Task{
		Arena:     Arena{Base: base, Size: size},
		Allocator: perTask,
		Threads:   container.NewVec[ThreadId](maxThreadsPerTask, maxThreadsPerTask),
	}, nil
}

// TaskRegistry is the kernel-wide task slot-map, capacity TaskCapacity.
type TaskRegistry struct {
	tasks *container.IndexMap[*Task]
}

func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{tasks: container.NewIndexMap[*Task](TaskCapacity)}
}

// CreateTask allocates a task's arena from global, registers it in the
// task slot-map, and injects the assigned TaskId back into the Task.
func (r *TaskRegistry) CreateTask(desc TaskDescriptor, global *alloc.Allocator, kind TaskKind) (TaskId, error) {
	task, err := newTask(desc, global)
	if err != nil {
		return TaskId{}, err
	}
	idx, err := r.tasks.InsertNext(task)
	if err != nil {
		return TaskId{}, kernerr.New(kernerr.OutOfMemory, "task slot-map exhausted")
	}
	task.ID = TaskId{Kind: kind, Index: idx}
	return task.ID, nil
}

// Get returns the task registered under id.
func (r *TaskRegistry) Get(id TaskId) (*Task, bool) {
	return r.tasks.Get(id.Index)
}

func (r *TaskRegistry) Cap() int { return r.tasks.Cap() }
