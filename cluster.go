package uexec

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Cluster owns a ready queue and a set of processors (spec §3). Every task
// whose state is Ready is on exactly one cluster's ready queue — this
// invariant is maintained entirely by [Task.Yield]/[Task.wake]/[Task.Migrate],
// which always route through Cluster.enqueueReady.
type Cluster struct {
	id string

	mu         sync.Mutex
	readyQueue ReadyQueue
	processors map[uint64]*Processor
	closed     bool
	doorbell   chan struct{} // capacity 1: "the ready queue became non-empty"
	stop       chan struct{}

	timers *timerQueue

	defaultQuantum  time.Duration
	defaultPriority int
	logger          Logger
}

// ClusterOption configures a Cluster at construction time, following the
// teacher's functional-options idiom (eventloop's LoopOption).
type ClusterOption interface{ applyCluster(*Cluster) }

type clusterOptionFunc func(*Cluster)

func (f clusterOptionFunc) applyCluster(c *Cluster) { f(c) }

// WithReadyQueue selects the ready-queue policy. Default: FIFO.
func WithReadyQueue(rq ReadyQueue) ClusterOption {
	return clusterOptionFunc(func(c *Cluster) { c.readyQueue = rq })
}

// WithDefaultQuantum sets the default preemption quantum for tasks created
// on this cluster. Zero disables preemption.
func WithDefaultQuantum(d time.Duration) ClusterOption {
	return clusterOptionFunc(func(c *Cluster) { c.defaultQuantum = d })
}

// WithDefaultPriority sets the default active/base priority for tasks
// created on this cluster (used by StaticPriorityQueue bands).
func WithDefaultPriority(p int) ClusterOption {
	return clusterOptionFunc(func(c *Cluster) { c.defaultPriority = p })
}

// WithClusterLogger attaches a structured logger to the cluster.
func WithClusterLogger(l Logger) ClusterOption {
	return clusterOptionFunc(func(c *Cluster) { c.logger = l })
}

// NewCluster constructs a cluster with no processors yet attached. Call
// [Cluster.AddProcessor] to give it kernel threads.
func NewCluster(opts ...ClusterOption) *Cluster {
	c := &Cluster{
		id:         uuid.NewString(),
		readyQueue: NewFIFOQueue(),
		processors: make(map[uint64]*Processor),
		doorbell:   make(chan struct{}, 1),
		stop:       make(chan struct{}),
		timers:     newTimerQueue(),
		logger:     NewNoOpLogger(),
	}
	for _, o := range opts {
		o.applyCluster(c)
	}
	return c
}

// ID returns the cluster's identity, used for log correlation.
func (c *Cluster) ID() string { return c.id }

// enqueueReady adds t to the ready queue and rings the doorbell so an idle
// processor wakes up.
func (c *Cluster) enqueueReady(t *Task) {
	c.mu.Lock()
	c.readyQueue.Add(t)
	c.mu.Unlock()
	select {
	case c.doorbell <- struct{}{}:
	default:
	}
}

// pickReady pops the next ready task, or nil if none is available.
func (c *Cluster) pickReady() *Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyQueue.Drop()
}

// removeReady unlinks t from the ready queue if it is still there (used
// when migrating a task that has not yet been dispatched).
func (c *Cluster) removeReady(t *Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyQueue.Remove(t)
}

// waitForWork blocks the calling processor until the ready queue is
// non-empty, a timer fires (which may itself make the queue non-empty),
// or the cluster is asked to stop. Returns false iff the cluster stopped.
func (c *Cluster) waitForWork() bool {
	for {
		if deadline, ok := c.timers.nextDeadline(); ok {
			d := time.Until(deadline)
			if d <= 0 {
				c.timers.fireExpired(time.Now())
				continue
			}
			timer := time.NewTimer(d)
			select {
			case <-c.doorbell:
				timer.Stop()
				return true
			case <-timer.C:
				c.timers.fireExpired(time.Now())
				continue
			case <-c.stop:
				timer.Stop()
				return false
			}
		}
		select {
		case <-c.doorbell:
			return true
		case <-c.stop:
			return false
		}
	}
}

// ArmTimer schedules onFire at deadline against this cluster's time-event
// queue and rings the doorbell so a processor idling with no other
// deadline armed re-evaluates promptly.
func (c *Cluster) ArmTimer(deadline time.Time, onFire func()) *timeEvent {
	e := c.timers.arm(deadline, onFire)
	select {
	case c.doorbell <- struct{}{}:
	default:
	}
	return e
}

// CancelTimer cancels e if it has not yet fired.
func (c *Cluster) CancelTimer(e *timeEvent) bool { return c.timers.cancel(e) }

// AddProcessor creates and starts a new processor bound to this cluster.
func (c *Cluster) AddProcessor(opts ...ProcessorOption) *Processor {
	p := newProcessor(c, opts...)
	c.mu.Lock()
	c.processors[p.id] = p
	c.mu.Unlock()
	go p.loop()
	return p
}

// RemoveProcessor asks p to finish its current quantum, migrate its
// running task (if any) to another processor on this cluster, and exit
// (spec §4.9). If p is the cluster's last processor and tasks remain, the
// cluster is left with zero processors — callers are responsible for
// ensuring another processor is added before those tasks can progress.
func (c *Cluster) RemoveProcessor(p *Processor) {
	c.mu.Lock()
	delete(c.processors, p.id)
	c.mu.Unlock()
	close(p.stopRequested)
}

// Shutdown stops every processor on the cluster. Ready tasks are left on
// the queue; it is a caller error to shut down a cluster with outstanding
// work it cares about completing.
func (c *Cluster) Shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	procs := make([]*Processor, 0, len(c.processors))
	for _, p := range c.processors {
		procs = append(procs, p)
	}
	c.mu.Unlock()
	close(c.stop)
	for _, p := range procs {
		<-p.exited
	}
}

// Migrate moves t from its current cluster to dst. If t is Ready and still
// queued, it is unlinked from the old cluster's ready queue and linked
// onto dst's. If t is Running, the move takes effect at its next
// suspension point: the processor running it is not interrupted, and t's
// next Yield enqueues it on dst.
func (t *Task) Migrate(dst *Cluster) {
	src := t.Cluster()
	if src == dst {
		return
	}
	if t.state.Load() == StateReady && src.removeReady(t) {
		t.current.Store(dst)
		dst.enqueueReady(t)
		return
	}
	// Running or Blocked: record the destination; the next Yield (for
	// Running) or the next wake (for Blocked) completes the migration by
	// re-enqueuing on the new cluster instead of the old one.
	t.current.Store(dst)
}
