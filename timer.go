package uexec

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// timeEvent is a (deadline, task) pair ordered by deadline (spec §3). The
// earliest-deadline entry at the head of a cluster's time queue drives the
// next timer programmation.
type timeEvent struct {
	deadline time.Time
	task     *Task
	index    int  // heap index, maintained by container/heap
	fired    bool // set once delivered, guards double-delivery
	onFire   func()
}

// timerHeap is a container/heap.Interface over timeEvent pointers ordered
// by deadline — directly grounded on the teacher's eventloop/loop.go
// timerHeap, generalized from "fire a callback" to "wake a blocked task".
type timerHeap []*timeEvent

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x any) {
	e := x.(*timeEvent)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// timerQueue is a cluster's monotonic time-event queue: a min-heap of
// pending deadlines guarded by a mutex, since arming/cancelling races with
// the processor idle-wait's deadline scan.
type timerQueue struct {
	mu sync.Mutex
	h  timerHeap
}

func newTimerQueue() *timerQueue {
	q := &timerQueue{}
	heap.Init(&q.h)
	return q
}

// arm schedules onFire to run at deadline and returns a handle that can
// cancel it exactly once.
func (q *timerQueue) arm(deadline time.Time, onFire func()) *timeEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := &timeEvent{deadline: deadline, onFire: onFire}
	heap.Push(&q.h, e)
	return e
}

// cancel removes e from the queue if it has not already fired. Returns
// true iff the cancel won the race against firing.
func (q *timerQueue) cancel(e *timeEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e.fired || e.index < 0 {
		return false
	}
	heap.Remove(&q.h, e.index)
	e.fired = true // mark so a concurrent fire no-ops
	return true
}

// nextDeadline returns the earliest pending deadline, if any.
func (q *timerQueue) nextDeadline() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return time.Time{}, false
	}
	return q.h[0].deadline, true
}

// fireExpired pops and fires every event whose deadline has elapsed as of
// now, returning how many fired.
func (q *timerQueue) fireExpired(now time.Time) int {
	var due []*timeEvent
	q.mu.Lock()
	for len(q.h) > 0 && !q.h[0].deadline.After(now) {
		e := heap.Pop(&q.h).(*timeEvent)
		e.fired = true
		due = append(due, e)
	}
	q.mu.Unlock()
	for _, e := range due {
		e.onFire()
	}
	return len(due)
}

// timedWait bundles the single-winner race resolution required whenever a
// suspension point can be ended either by a wake (signal, V, entry grant)
// or by timeout expiry (spec §7: "the race where a signal arrives during
// timeout cancellation is resolved by a single 'signalled' flag").
type timedWait struct {
	settled atomic.Bool // CAS guard: exactly one of {wake, timeout} wins
	woken   atomic.Bool // true if the winner was a wake, false if timeout
	event   *timeEvent
}

// winAsWake attempts to resolve the race in favor of an ordinary wake
// (e.g. V(), signal, entry grant). Returns true iff this call won.
func (w *timedWait) winAsWake() bool {
	if w.settled.CompareAndSwap(false, true) {
		w.woken.Store(true)
		return true
	}
	return false
}

// winAsTimeout attempts to resolve the race in favor of timeout expiry.
// Returns true iff this call won.
func (w *timedWait) winAsTimeout() bool {
	if w.settled.CompareAndSwap(false, true) {
		w.woken.Store(false)
		return true
	}
	return false
}

// signalled reports which side won once settled; callers only read this
// after the winning side has also performed its wake/park handoff.
func (w *timedWait) signalled() bool { return w.woken.Load() }
