package uexec

import (
	"math/bits"
	"sync"
	"time"
)

// ReadyQueue is the pluggable abstract sequence backing a Cluster's ready
// tasks (spec §4.4): add, drop, empty, plus on_acquire/on_release hooks
// that let a policy implement priority inheritance or a priority ceiling.
// Implementations must be safe for concurrent use; Cluster serializes
// access with its own lock, but a policy may hold locks of its own (each
// shipped policy guards its state with its own mutex).
type ReadyQueue interface {
	// Add inserts t according to the policy's ordering.
	Add(t *Task)
	// Drop removes and returns the next task to run, or nil if empty.
	Drop() *Task
	// Remove unlinks t if present (used when a task migrates away before
	// being dispatched). Returns true if t was found and removed.
	Remove(t *Task) bool
	// Empty reports whether the queue currently holds no tasks.
	Empty() bool
	// Len reports the number of queued tasks.
	Len() int
	// OnAcquire is invoked when owner becomes the running/owning task,
	// e.g. to raise its effective priority under a ceiling policy.
	OnAcquire(owner *Task)
	// OnRelease is invoked when owner stops being the running/owning
	// task, undoing anything OnAcquire did.
	OnRelease(owner *Task)
}

// FIFOQueue is the default ready-queue policy: add at tail, drop at head.
type FIFOQueue struct {
	mu   sync.Mutex
	list taskList
}

func NewFIFOQueue() *FIFOQueue { return &FIFOQueue{} }

func (q *FIFOQueue) Add(t *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.list.PushBack(t)
}

func (q *FIFOQueue) Drop() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.PopFront()
}

func (q *FIFOQueue) Remove(t *Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t.node.list != &q.list {
		return false
	}
	q.list.Remove(t)
	return true
}

func (q *FIFOQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.Empty()
}

func (q *FIFOQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.Len()
}

func (q *FIFOQueue) OnAcquire(*Task) {}
func (q *FIFOQueue) OnRelease(*Task) {}

// LIFOQueue: add at tail, drop at tail (spec §4.4).
type LIFOQueue struct {
	mu   sync.Mutex
	list taskList
}

func NewLIFOQueue() *LIFOQueue { return &LIFOQueue{} }

func (q *LIFOQueue) Add(t *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.list.PushBack(t)
}

func (q *LIFOQueue) Drop() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.PopBack()
}

func (q *LIFOQueue) Remove(t *Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t.node.list != &q.list {
		return false
	}
	q.list.Remove(t)
	return true
}

func (q *LIFOQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.Empty()
}

func (q *LIFOQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.Len()
}

func (q *LIFOQueue) OnAcquire(*Task) {}
func (q *LIFOQueue) OnRelease(*Task) {}

// MaxPriorityBands is the number of static-priority bands supported by
// [StaticPriorityQueue] — one bit per band in a single machine word. uC++
// caps this at 32 (__U_MAX_NUMBER_PRIORITIES__); a single uint64 bitmask
// lets this port support 64 without changing the algorithm, a faithful
// generalization rather than a behavior change.
const MaxPriorityBands = 64

// StaticPriorityQueue dispatches the non-empty band of highest priority
// (highest band index, consistent with the rest of the kernel's convention
// that a larger numeric priority is more privileged — see
// [Task.ActivePriority]), found via find-last-set on a bitmask; ties inside
// a band are broken FIFO (spec §4.4).
type StaticPriorityQueue struct {
	mu    sync.Mutex
	bands [MaxPriorityBands]taskList
	mask  uint64
}

func NewStaticPriorityQueue() *StaticPriorityQueue { return &StaticPriorityQueue{} }

func (q *StaticPriorityQueue) bandOf(t *Task) int {
	p := t.ActivePriority()
	if p < 0 {
		p = 0
	}
	if p >= MaxPriorityBands {
		p = MaxPriorityBands - 1
	}
	return p
}

func (q *StaticPriorityQueue) Add(t *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	b := q.bandOf(t)
	q.bands[b].PushBack(t)
	q.mask |= 1 << uint(b)
}

func (q *StaticPriorityQueue) Drop() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.mask == 0 {
		return nil
	}
	b := bits.Len64(q.mask) - 1
	t := q.bands[b].PopFront()
	if q.bands[b].Empty() {
		q.mask &^= 1 << uint(b)
	}
	return t
}

func (q *StaticPriorityQueue) Remove(t *Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for b := range q.bands {
		if t.node.list == &q.bands[b] {
			q.bands[b].Remove(t)
			if q.bands[b].Empty() {
				q.mask &^= 1 << uint(b)
			}
			return true
		}
	}
	return false
}

func (q *StaticPriorityQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mask == 0
}

func (q *StaticPriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for b := range q.bands {
		n += q.bands[b].Len()
	}
	return n
}

func (q *StaticPriorityQueue) OnAcquire(*Task) {}
func (q *StaticPriorityQueue) OnRelease(*Task) {}

// DeadlineMonotonicQueue orders tasks by shorter relative deadline first
// (an absolute deadline computed at Add time), ties broken by arrival
// order (spec §4.4). It is O(n) per Add, appropriate for the small ready
// sets typical of a cooperative-task cluster.
type DeadlineMonotonicQueue struct {
	mu       sync.Mutex
	entries  []dmEntry
	sequence uint64
}

type dmEntry struct {
	task     *Task
	deadline time.Time
	seq      uint64
}

func NewDeadlineMonotonicQueue() *DeadlineMonotonicQueue { return &DeadlineMonotonicQueue{} }

func (q *DeadlineMonotonicQueue) Add(t *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sequence++
	d := t.Deadline()
	if d.IsZero() {
		d = time.Now().Add(t.RelativeDeadline())
	}
	e := dmEntry{task: t, deadline: d, seq: q.sequence}
	// insertion sort: deadline ascending, then seq ascending.
	i := len(q.entries)
	q.entries = append(q.entries, e)
	for i > 0 && less(e, q.entries[i-1]) {
		q.entries[i] = q.entries[i-1]
		i--
	}
	q.entries[i] = e
}

func less(a, b dmEntry) bool {
	if a.deadline.Equal(b.deadline) {
		return a.seq < b.seq
	}
	return a.deadline.Before(b.deadline)
}

func (q *DeadlineMonotonicQueue) Drop() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e.task
}

func (q *DeadlineMonotonicQueue) Remove(t *Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.task == t {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (q *DeadlineMonotonicQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries) == 0
}

func (q *DeadlineMonotonicQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *DeadlineMonotonicQueue) OnAcquire(*Task) {}
func (q *DeadlineMonotonicQueue) OnRelease(*Task) {}

// CeilingQueue decorates another ReadyQueue with the priority-ceiling
// policy (spec §4.4): while a task is acquired (e.g. owns a mutex object
// using this queue as its scheduling policy), its active priority is
// raised to the queue's ceiling; OnRelease restores whatever it was
// before. Ordering of Add/Drop/Remove/Empty/Len is entirely delegated to
// the wrapped queue.
type CeilingQueue struct {
	inner   ReadyQueue
	ceiling int

	mu    sync.Mutex
	saved map[uint64]int
}

// NewCeilingQueue wraps inner with a priority ceiling of ceiling.
func NewCeilingQueue(inner ReadyQueue, ceiling int) *CeilingQueue {
	return &CeilingQueue{inner: inner, ceiling: ceiling, saved: make(map[uint64]int)}
}

func (q *CeilingQueue) Add(t *Task)         { q.inner.Add(t) }
func (q *CeilingQueue) Drop() *Task         { return q.inner.Drop() }
func (q *CeilingQueue) Remove(t *Task) bool { return q.inner.Remove(t) }
func (q *CeilingQueue) Empty() bool         { return q.inner.Empty() }
func (q *CeilingQueue) Len() int            { return q.inner.Len() }

func (q *CeilingQueue) OnAcquire(owner *Task) {
	q.mu.Lock()
	q.saved[owner.id] = owner.ActivePriority()
	q.mu.Unlock()
	owner.setActivePriority(q.ceiling)
}

func (q *CeilingQueue) OnRelease(owner *Task) {
	q.mu.Lock()
	prev, ok := q.saved[owner.id]
	delete(q.saved, owner.id)
	q.mu.Unlock()
	if ok {
		owner.setActivePriority(prev)
	}
}
