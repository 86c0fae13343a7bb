package uexec

import "sync/atomic"

// TaskState is one node of the task lifecycle state machine (spec §4.3):
//
//	New → Ready → Running → {Ready, Blocked, Halt} → Terminate
//
// Only the owning processor ever transitions a task out of Running; wakes
// (Blocked → Ready) are decided under the mutex of the resource that owned
// the block and may be carried out after it is released (see Task.wake).
type TaskState uint32

const (
	// StateNew is the state of a task that has not yet been dispatched.
	StateNew TaskState = iota
	// StateReady indicates the task is on a cluster's ready queue.
	StateReady
	// StateRunning indicates the task currently owns a processor.
	StateRunning
	// StateBlocked indicates the task is waiting on an entry/condition/
	// semaphore/timer/IO event.
	StateBlocked
	// StateHalt indicates the task's main function returned.
	StateHalt
	// StateTerminate indicates the task has been joined and its storage
	// may be reclaimed.
	StateTerminate
)

// String returns the human-readable state name.
func (s TaskState) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateBlocked:
		return "Blocked"
	case StateHalt:
		return "Halt"
	case StateTerminate:
		return "Terminate"
	default:
		return "Unknown"
	}
}

// taskState is a lock-free, cache-line-padded state machine cell: a CAS
// loop rather than a mutex, since state reads happen on every suspension
// point and every processor dispatch.
type taskState struct { //nolint:unused
	_ [64]byte
	v atomic.Uint32
	_ [60]byte
}

func newTaskState(initial TaskState) *taskState {
	s := &taskState{}
	s.v.Store(uint32(initial))
	return s
}

// Load returns the current state atomically.
func (s *taskState) Load() TaskState { return TaskState(s.v.Load()) }

// Store atomically stores a new state without validating the transition.
// Use TryTransition when the caller must only succeed from a known state.
func (s *taskState) Store(state TaskState) { s.v.Store(uint32(state)) }

// TryTransition attempts an atomic CAS from "from" to "to". Returns true
// iff the transition occurred.
func (s *taskState) TryTransition(from, to TaskState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// TransitionAny attempts to move from any of validFrom to "to", trying
// each candidate source state in order until one CAS succeeds.
func (s *taskState) TransitionAny(validFrom []TaskState, to TaskState) bool {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(uint32(from), uint32(to)) {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the task has reached Terminate.
func (s *taskState) IsTerminal() bool { return s.Load() == StateTerminate }
