package uexec

import (
	"runtime"
	"sync/atomic"
	"time"
)

var processorIDSeq atomic.Uint64

// Processor is a virtual processor: a kernel thread (realized as an
// OS-thread-locked goroutine) bound 1:1 to a cluster at any moment, running
// the pick/switch/resume main loop described in spec §4.2.
type Processor struct {
	id      uint64
	cluster *Cluster

	current atomic.Pointer[Task]
	idle    atomic.Bool

	stopRequested chan struct{}
	exited        chan struct{}

	logger Logger
}

// ProcessorOption configures a Processor at construction time.
type ProcessorOption interface{ applyProcessor(*Processor) }

type processorOptionFunc func(*Processor)

func (f processorOptionFunc) applyProcessor(p *Processor) { f(p) }

// WithProcessorLogger attaches a structured logger to the processor.
func WithProcessorLogger(l Logger) ProcessorOption {
	return processorOptionFunc(func(p *Processor) { p.logger = l })
}

func newProcessor(c *Cluster, opts ...ProcessorOption) *Processor {
	p := &Processor{
		id:            processorIDSeq.Add(1),
		cluster:       c,
		stopRequested: make(chan struct{}),
		exited:        make(chan struct{}),
		logger:        NewNoOpLogger(),
	}
	for _, o := range opts {
		o.applyProcessor(p)
	}
	return p
}

// ID returns the processor's identity.
func (p *Processor) ID() uint64 { return p.id }

// Cluster returns the cluster this processor is currently bound to.
func (p *Processor) Cluster() *Cluster { return p.cluster }

// Idle reports whether the processor is currently parked waiting for work.
func (p *Processor) Idle() bool { return p.idle.Load() }

// CurrentTask returns the task this processor is currently running, or
// nil if idle.
func (p *Processor) CurrentTask() *Task { return p.current.Load() }

// loop is the processor main loop (spec §4.2): pick next ready task from
// the cluster's ready queue, switch to it, and upon yield/block resume the
// loop. When the ready queue is empty the processor blocks on the
// cluster's idle mechanism until a task is enqueued or it is asked to stop.
func (p *Processor) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(p.exited)

	LogInfo(p.logger, "processor", "processor started", map[string]any{"processor": p.id})

	for {
		select {
		case <-p.stopRequested:
			return
		default:
		}

		t := p.cluster.pickReady()
		if t == nil {
			p.idle.Store(true)
			ok := p.cluster.waitForWork()
			p.idle.Store(false)
			if !ok {
				return
			}
			continue
		}

		select {
		case <-p.stopRequested:
			// Put the task back; another processor (or none, if this was
			// the last one) will pick it up.
			p.cluster.enqueueReady(t)
			return
		default:
		}

		p.runTask(t)
	}
}

// runTask switches to t for one quantum's worth of logical execution and
// toggles the preemption timer around it (spec §4.2 side effects).
func (p *Processor) runTask(t *Task) {
	p.current.Store(t)
	t.runningOn.Store(p)

	var quantumTimer *time.Timer
	if t.quantum > 0 {
		quantumTimer = time.AfterFunc(t.quantum, func() {
			t.preemptPending.Store(true)
		})
	}

	t.dispatch()

	if quantumTimer != nil {
		quantumTimer.Stop()
	}
	t.preemptPending.Store(false)

	t.runningOn.Store(nil)
	p.current.Store(nil)

	if t.state.Load() == StateHalt {
		LogInfo(p.logger, "processor", "task halted", map[string]any{"processor": p.id, "task": t.id})
	}
}
