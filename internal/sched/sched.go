// Package sched implements the rate-monotonic scheduler: a ready heap
// keyed on priority, a delay queue of threads waiting to become ready
// again, and the tick and context-exchange entry points a real target
// invokes from its timer and software interrupt handlers.
package sched

import (
	"sync/atomic"

	"github.com/OsirisRTOS/osiris-sub000/internal/alloc"
	"github.com/OsirisRTOS/osiris-sub000/internal/container"
	"github.com/OsirisRTOS/osiris-sub000/internal/kernerr"
	"github.com/OsirisRTOS/osiris-sub000/internal/ksync"
	"github.com/OsirisRTOS/osiris-sub000/internal/ktask"
	"github.com/OsirisRTOS/osiris-sub000/internal/machine"
)

// readyEntry is one element of the ready heap. Key is ordinarily a
// thread's period (rate-monotonic priority) but the tick handler
// reinserts a just-fired delayed thread keyed on its own exec_time
// instead, and sched_enter does the same for a just-preempted thread
// — see DESIGN.md for why this asymmetry is kept rather than
// normalized to always key on period.
type readyEntry struct {
	Key uint32
	Tid ktask.ThreadUId
}

func readyLess(a, b readyEntry) bool {
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	// Equal keys: the thread minted first (smaller Unique) wins, giving
	// a stable FIFO order among threads at the same priority.
	return a.Tid.Unique < b.Tid.Unique
}

// DelayEntry is one element of the delay queue. Remaining holds an
// absolute tick count for the entry at the head of the queue, and a
// count relative to the entry before it for every later entry — so the
// running sum of Remaining from the head up to and including any entry
// equals that entry's own absolute remaining delay.
type DelayEntry struct {
	Tid       ktask.ThreadUId
	Remaining uint32
}

// State is the scheduler's process-wide state, guarded by a single
// spin lock. Every field below is touched only while holding it.
type State struct {
	lock ksync.SpinLock

	current         *ktask.ThreadUId
	currentInterval uint32
	ready           *container.BinaryHeap[readyEntry]
	delayed         *container.Queue[DelayEntry]
	time            uint32

	threads *ktask.ThreadRegistry
	tasks   *ktask.TaskRegistry

	m machine.Machine

	// reschedulePending mirrors "a context-switch software interrupt is
	// already pending": Tick only calls TriggerReschedule on the
	// transition from not-pending to pending, and SchedEnter clears it
	// on every call, whether or not it switches threads.
	reschedulePending atomic.Bool
}

// New builds an empty scheduler bound to machine m, which it calls to
// raise the reschedule interrupt.
func New(m machine.Machine) *State {
	return &State{
		ready:   container.NewBinaryHeap[readyEntry](ktask.ThreadCapacity, readyLess),
		delayed: container.NewQueue[DelayEntry](ktask.ThreadCapacity),
		threads: ktask.NewThreadRegistry(),
		tasks:   ktask.NewTaskRegistry(),
		m:       m,
	}
}

// Reset discards all tasks, threads, and queued scheduling state,
// returning to a freshly-New()'d scheduler bound to the same machine.
// Used to rebuild a clean kernel between test cases or a boot retry;
// no invariant of a running system depends on ever calling this.
func (s *State) Reset() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.current = nil
	s.currentInterval = 0
	s.time = 0
	s.ready = container.NewBinaryHeap[readyEntry](ktask.ThreadCapacity, readyLess)
	s.delayed = container.NewQueue[DelayEntry](ktask.ThreadCapacity)
	s.threads = ktask.NewThreadRegistry()
	s.tasks = ktask.NewTaskRegistry()
	s.reschedulePending.Store(false)
}

// CreateTask allocates a task's arena and registers it, under the
// scheduler lock even though tasks predate any ready-heap activity —
// boot is the only caller and it is simplest to serialize all
// slot-map mutation through one lock.
func (s *State) CreateTask(desc ktask.TaskDescriptor, global *alloc.Allocator, kind ktask.TaskKind) (ktask.TaskId, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.tasks.CreateTask(desc, global, kind)
}

// CreateThread allocates a thread's stack, fabricates its entry frame,
// registers it, and pushes it onto the ready heap keyed on its period
// — all atomically under the scheduler lock, unlike
// ktask.ThreadRegistry.CreateThread alone, which never touches the
// ready heap.
func (s *State) CreateThread(taskID ktask.TaskId, entry, finalizer uint32, timing ktask.Timing) (ktask.ThreadUId, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	task, ok := s.tasks.Get(taskID)
	if !ok {
		return ktask.ThreadUId{}, kernerr.New(kernerr.InvalidArgument, "unknown task id")
	}
	tuid, err := s.threads.CreateThread(task, entry, finalizer, timing)
	if err != nil {
		return ktask.ThreadUId{}, err
	}
	if err := s.ready.Push(readyEntry{Key: timing.Period, Tid: tuid}); err != nil {
		return ktask.ThreadUId{}, err
	}
	return tuid, nil
}

// Current returns the currently running thread, if any.
func (s *State) Current() (ktask.ThreadUId, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.current == nil {
		return ktask.ThreadUId{}, false
	}
	return *s.current, true
}

// Time returns the scheduler's elapsed-tick counter within the current
// quantum.
func (s *State) Time() uint32 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.time
}

// Thread exposes a registered thread for inspection (stack pointer,
// run state, overrun count); callers must not mutate scheduler-owned
// fields outside the scheduler itself.
func (s *State) Thread(u ktask.ThreadUId) (*ktask.Thread, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.threads.Get(u)
}

func (s *State) queuedDelay() uint32 {
	var total uint32
	for i := 0; i < s.delayed.Len(); i++ {
		e, _ := s.delayed.At(i)
		total += e.Remaining
	}
	return total
}

// Tick advances scheduler time by one, fires any delayed threads whose
// countdown has reached zero, and — if the current quantum has elapsed
// — arranges for a reschedule. It must be called once per system timer
// interrupt.
func (s *State) Tick() {
	s.lock.Lock()

	s.time++

	for {
		head, ok := s.delayed.Front()
		if !ok {
			break
		}
		if head.Remaining > 1 {
			rewritten := *head
			rewritten.Remaining--
			s.delayed.Insert(0, rewritten)
			break
		}
		entry, _ := s.delayed.PopFront()
		if th, ok := s.threads.Get(entry.Tid); ok {
			th.RunState = ktask.RunStateReady
			s.ready.Push(readyEntry{Key: th.Timing.ExecTime, Tid: entry.Tid})
		}
		// The new head's Remaining is a delta relative to the entry just
		// fired (always at least 1), so it is left as is for this tick.
		break
	}

	needReschedule := false
	if s.time >= s.currentInterval {
		s.time = 0
		needReschedule = true
	}

	pending := needReschedule && s.reschedulePending.CompareAndSwap(false, true)
	s.lock.Unlock()

	// TriggerReschedule must run with the scheduler lock released: on a
	// real target it only pends an interrupt and returns immediately,
	// but the host simulation invokes sched_enter synchronously from
	// here, which would deadlock against this same lock if it were
	// still held.
	if pending {
		s.m.TriggerReschedule()
	}
}

// SchedEnter is the context-exchange entry point invoked by the
// reschedule interrupt handler. currentCtx is the outgoing thread's
// stack pointer at the moment of the switch (meaningless if there is
// no outgoing thread yet, i.e. at the very first dispatch). It returns
// the stack pointer to resume execution from.
func (s *State) SchedEnter(currentCtx uint32) uint32 {
	s.lock.Lock()
	defer s.lock.Unlock()
	defer s.reschedulePending.Store(false)

	outgoing := s.current
	if outgoing != nil {
		if th, ok := s.threads.Get(*outgoing); ok {
			th.Stack.SP = currentCtx
		}
	}

	chosen, ok := s.ready.Pop()
	if !ok {
		// Nothing else is ready; keep running the outgoing thread (or,
		// if there was none, the caller's own context) unchanged.
		return currentCtx
	}

	if outgoing != nil {
		if th, ok := s.threads.Get(*outgoing); ok {
			queued := s.queuedDelay()
			if th.Timing.Period > s.time+queued {
				delta := th.Timing.Period - (s.time + queued)
				th.RunState = ktask.RunStateDelayed
				s.delayed.PushBack(DelayEntry{Tid: *outgoing, Remaining: delta})
			} else {
				th.Overruns++
				th.RunState = ktask.RunStateReady
				s.ready.Push(readyEntry{Key: th.Timing.ExecTime, Tid: *outgoing})
			}
		}
	}

	chosenThread, ok := s.threads.Get(chosen.Tid)
	if !ok {
		// The ready heap never outlives its thread, so this would be an
		// internal inconsistency; fall back to not switching at all
		// rather than dereferencing a missing thread.
		return currentCtx
	}
	chosenThread.RunState = ktask.RunStateRuns
	s.currentInterval = chosenThread.Timing.ExecTime
	tid := chosen.Tid
	s.current = &tid
	return chosenThread.Stack.SP
}
