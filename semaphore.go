package uexec

import "time"

const (
	opSemP OpID = iota
	opSemV
)

// Semaphore is a counting semaphore built directly on the mutex-object and
// condition-variable machinery (spec §4.6): P blocks while the counter is
// zero, V increments it and wakes one waiter.
type Semaphore struct {
	m       *Monitor
	nonZero *Condition
	count   int
}

// NewSemaphore creates a semaphore with the given initial count.
func NewSemaphore(initial int, opts ...MonitorOption) *Semaphore {
	m := NewMonitor(opts...)
	return &Semaphore{m: m, nonZero: NewCondition(m), count: initial}
}

// Count returns the current counter value. Racy the instant it returns
// under concurrent P/V, but safe for diagnostics.
func (s *Semaphore) Count() int {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.count
}

// P decrements the counter, blocking while it is zero (spec §4.6).
func (s *Semaphore) P(t *Task) {
	s.m.Enter(t, opSemP)
	for s.count == 0 {
		s.nonZero.Wait(t, nil)
	}
	s.count--
	s.m.Exit(t)
}

// TryP decrements the counter and returns true only if it was already
// non-zero; never blocks.
func (s *Semaphore) TryP(t *Task) bool {
	s.m.Enter(t, opSemP)
	ok := s.count > 0
	if ok {
		s.count--
	}
	s.m.Exit(t)
	return ok
}

// V increments the counter and wakes one waiter, if any (spec §4.6).
func (s *Semaphore) V(t *Task) {
	s.m.Enter(t, opSemV)
	s.count++
	s.nonZero.Signal(t)
	s.m.Exit(t)
}

// TimedP waits up to d for the counter to become non-zero. Returns true if
// it decremented the counter (signalled), false if d elapsed first (spec
// §4.6, §8 scenario 4: "exactly one of {return signalled, return timeout}
// is reported; the semaphore counter never goes negative").
func (s *Semaphore) TimedP(t *Task, d time.Duration) bool {
	s.m.Enter(t, opSemP)
	for s.count == 0 {
		if !s.nonZero.WaitTimeout(t, nil, d) {
			s.m.Exit(t)
			return false
		}
	}
	s.count--
	s.m.Exit(t)
	return true
}
