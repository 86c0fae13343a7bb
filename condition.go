package uexec

import (
	"sync"
	"time"
)

// condWaiter is one entry on a Condition's wait queue: a task plus the
// opaque info passed to Wait, inspectable via Front without removal
// (spec §3 "a FIFO of (task, opaque info) pairs"). wait is non-nil only
// for WaitTimeout callers, letting Signal resolve the timeout race.
type condWaiter struct {
	task *Task
	info any
	wait *timedWait
}

// Condition is a condition variable associated with exactly one Monitor
// (spec §3, §4.5). Wait atomically releases the monitor and queues the
// caller; Signal/SignalBlock/SignalAll move waiters toward ownership with
// Mesa semantics: a plain Signal only marks the waiter eligible to
// reacquire — it does not yield ownership immediately.
//
// Lock order: whenever both are held, owner.mu is acquired before mu.
type Condition struct {
	owner *Monitor

	mu      sync.Mutex
	waiters []condWaiter
}

// NewCondition creates a condition variable scoped to m. m must be entered
// by the calling task whenever Wait/Signal/SignalBlock/SignalAll is
// invoked on the returned Condition.
func NewCondition(m *Monitor) *Condition {
	return &Condition{owner: m}
}

// Empty reports whether any task is currently waiting on c.
func (c *Condition) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters) == 0
}

// Front returns the info passed to the earliest still-waiting Wait call,
// and true, without removing it; returns false if c is empty.
func (c *Condition) Front() (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.waiters) == 0 {
		return nil, false
	}
	return c.waiters[0].info, true
}

// releaseAndEnqueue is the common prefix of Wait/WaitTimeout: append t to
// the wait queue, release the monitor on t's behalf, and hand over to
// whoever is next. Must be called with m.mu held; returns with it released.
func (c *Condition) releaseAndEnqueue(t *Task, info any, tw *timedWait) {
	m := c.owner
	c.mu.Lock()
	c.waiters = append(c.waiters, condWaiter{task: t, info: info, wait: tw})
	c.mu.Unlock()

	m.releaseLocked(t)
	next := m.nextOwnerLocked()
	if next != nil {
		m.acquireLocked(next)
	} else {
		m.owner = nil
	}
	t.enterBlocked()
	t.markLinkedBlock()
	m.mu.Unlock()

	t.popFrame(m)
	if next != nil {
		m.handOverTo(next)
	}
}

// Wait atomically releases ownership of c's monitor and blocks t on c's
// FIFO queue, reacquiring ownership (per the monitor's normal handover
// rule, which prefers the acceptor stack) before returning (spec §4.5).
func (c *Condition) Wait(t *Task, info any) {
	m := c.owner
	m.mu.Lock()
	if m.owner != t {
		m.mu.Unlock()
		Fatal("condition", "task %d waited on a condition of a monitor it does not own", t.id)
	}
	c.releaseAndEnqueue(t, info, nil)

	t.parkBlocked()
	t.pushFrame(m)
}

// WaitTimeout behaves like Wait but also arms a timer for d; it returns
// true if a signal reacquired ownership for t before d elapsed, false if
// the timeout fired first (spec §4.6's timed-wait race, reused here).
func (c *Condition) WaitTimeout(t *Task, info any, d time.Duration) bool {
	m := c.owner
	m.mu.Lock()
	if m.owner != t {
		m.mu.Unlock()
		Fatal("condition", "task %d waited on a condition of a monitor it does not own", t.id)
	}
	tw := &timedWait{}
	t.wait = tw
	c.releaseAndEnqueue(t, info, tw)

	deadline := time.Now().Add(d)
	ev := t.Cluster().ArmTimer(deadline, func() {
		m.mu.Lock()
		if tw.winAsTimeout() {
			c.mu.Lock()
			c.removeWaiter(t)
			c.mu.Unlock()
			// Like Wait, return to the caller owning the monitor: take it
			// now if free, otherwise queue for it on the urgent queue.
			if m.owner == nil {
				m.acquireLocked(t)
				m.mu.Unlock()
				t.wake()
				return
			}
			m.urgentQueue.PushBack(t)
		}
		m.mu.Unlock()
	})

	t.parkBlocked()
	t.wait = nil
	signalled := tw.signalled()
	if signalled {
		t.Cluster().CancelTimer(ev)
	}
	t.pushFrame(m)
	return signalled
}

// removeWaiter unlinks and returns the waiter for task, if still present.
// Callers hold c.mu.
func (c *Condition) removeWaiter(task *Task) (condWaiter, bool) {
	for i, w := range c.waiters {
		if w.task == task {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return w, true
		}
	}
	return condWaiter{}, false
}

// popWaiterLocked pops the head waiter whose timing race (if any) this
// call wins, skipping any whose timeout already claimed them. Caller holds
// m.mu; returns (waiter, true) or (zero, false) if none available.
func (c *Condition) popWaiterLocked() (condWaiter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.waiters) > 0 {
		w := c.waiters[0]
		c.waiters = c.waiters[1:]
		if w.wait == nil || w.wait.winAsWake() {
			return w, true
		}
		// This waiter's timeout already won the race concurrently; skip it.
	}
	return condWaiter{}, false
}

// handoverWaiter prepares w for ownership (withdrawing any inheritance its
// block had applied) and links it onto dst. Caller holds m.mu.
func (m *Monitor) handoverWaiter(w condWaiter, dst *taskList) {
	if w.task.boostedOwner != nil {
		m.withdrawInheritance(w.task.boostedOwner, w.task)
		w.task.boostedOwner = nil
	}
	dst.PushBack(w.task)
}

// Signal moves the head waiter (if any) to the monitor's urgent queue,
// which is granted ownership ahead of the entry queue the next time the
// current owner releases the monitor (Exit or Wait); an Accept that matches
// an entry-queue caller hands ownership to that caller instead. The
// signaller (t) continues
// running uninterrupted (spec §3, §4.5, Mesa semantics).
func (c *Condition) Signal(t *Task) {
	m := c.owner
	m.mu.Lock()
	if m.owner != t {
		m.mu.Unlock()
		Fatal("condition", "task %d signalled a condition of a monitor it does not own", t.id)
	}
	w, ok := c.popWaiterLocked()
	if !ok {
		m.mu.Unlock()
		return
	}
	m.handoverWaiter(w, &m.urgentQueue)
	m.mu.Unlock()
}

// SignalBlock immediately transfers ownership to the head waiter (if any)
// and blocks the signaller on the urgent queue until it is handed
// ownership back (spec §3, §4.5, §8 scenario 2). If c is empty,
// SignalBlock is a no-op and t keeps running.
func (c *Condition) SignalBlock(t *Task) {
	m := c.owner
	m.mu.Lock()
	if m.owner != t {
		m.mu.Unlock()
		Fatal("condition", "task %d signalled a condition of a monitor it does not own", t.id)
	}
	w, ok := c.popWaiterLocked()
	if !ok {
		m.mu.Unlock()
		return
	}
	if w.task.boostedOwner != nil {
		m.withdrawInheritance(w.task.boostedOwner, w.task)
		w.task.boostedOwner = nil
	}
	m.releaseLocked(t)
	m.acquireLocked(w.task)
	m.urgentQueue.PushBack(t)
	t.enterBlocked()
	t.markLinkedBlock()
	m.mu.Unlock()

	t.popFrame(m)
	m.handOverTo(w.task)

	t.parkBlocked()
	t.pushFrame(m)
}

// SignalAll moves every current waiter onto the urgent queue. At most one
// becomes immediately Ready-eligible via the usual handover; the rest wake
// only as ownership continues to pass across the urgent queue (spec §3).
func (c *Condition) SignalAll(t *Task) {
	m := c.owner
	m.mu.Lock()
	if m.owner != t {
		m.mu.Unlock()
		Fatal("condition", "task %d signalled a condition of a monitor it does not own", t.id)
	}
	for {
		w, ok := c.popWaiterLocked()
		if !ok {
			break
		}
		m.handoverWaiter(w, &m.urgentQueue)
	}
	m.mu.Unlock()
}
