package uexec

const opBarrierArrive OpID = 0

// Barrier holds n tasks until all n have arrived, then releases them
// together and resets for the next round (spec §4.6).
type Barrier struct {
	m        *Monitor
	released *Condition
	n        int
	waiting  int
	round    int
}

// NewBarrier creates a barrier for n participants.
func NewBarrier(n int, opts ...MonitorOption) *Barrier {
	m := NewMonitor(opts...)
	return &Barrier{m: m, released: NewCondition(m), n: n}
}

// Wait blocks until n tasks have called Wait in the current round, then
// releases all of them and starts the next round.
func (b *Barrier) Wait(t *Task) {
	b.m.Enter(t, opBarrierArrive)
	myRound := b.round
	b.waiting++
	if b.waiting == b.n {
		b.waiting = 0
		b.round++
		b.released.SignalAll(t)
		b.m.Exit(t)
		return
	}
	for b.round == myRound {
		b.released.Wait(t, nil)
	}
	b.m.Exit(t)
}
