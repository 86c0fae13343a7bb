// Package executor provides a bounded worker pool built on top of a uexec
// cluster, following the executor-pool configuration surface described by
// [uexec.Config] (processor count, worker count, request-queue length,
// separate-cluster flag, affinity base). Admission control and fan-out/
// fan-in are delegated to golang.org/x/sync's weighted semaphore and
// errgroup rather than hand-rolled, matching how the wider dependency pack
// solves the same bounded-concurrency problem.
package executor

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	uexec "github.com/joeycumines/go-uexec"
)

// Pool dispatches submitted work onto a fixed set of uexec tasks, bounding
// total in-flight and queued work with a weighted semaphore.
type Pool struct {
	cluster      *uexec.Cluster
	ownedCluster bool
	affinityBase int

	sem   *semaphore.Weighted
	queue chan func(*uexec.Task)

	workers []*uexec.Task
	wg      sync.WaitGroup

	closeOnce sync.Once
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithSeparateCluster gives the pool its own cluster and processors instead
// of sharing sys's system cluster (spec's ExecutorSeparateCluster knob).
func WithSeparateCluster() Option {
	return func(p *Pool) { p.ownedCluster = true }
}

// WithAffinityBase records the first processor index reserved for this
// pool when it shares a cluster. This port does not pin goroutines beyond
// LockOSThread, so the value is advisory and surfaced only via
// [Pool.AffinityBase].
func WithAffinityBase(n int) Option {
	return func(p *Pool) { p.affinityBase = n }
}

// New builds a Pool of workers tasks reading from a request queue of
// length queueLen, running on sys's system cluster unless WithSeparateCluster
// is given or sys is nil (in which case it builds its own cluster with
// processors processors, shut down by [Pool.Close]).
func New(sys *uexec.System, processors, workers, queueLen int, opts ...Option) *Pool {
	if queueLen < 1 {
		queueLen = 1
	}
	if workers < 1 {
		workers = 1
	}

	p := &Pool{
		sem:   semaphore.NewWeighted(int64(queueLen)),
		queue: make(chan func(*uexec.Task), queueLen),
	}
	for _, o := range opts {
		o(p)
	}

	if p.ownedCluster || sys == nil {
		if processors < 1 {
			processors = 1
		}
		p.ownedCluster = true
		p.cluster = uexec.NewCluster()
		for i := 0; i < processors; i++ {
			p.cluster.AddProcessor()
		}
	} else {
		p.cluster = sys.SystemCluster()
	}

	p.workers = make([]*uexec.Task, 0, workers)
	for i := 0; i < workers; i++ {
		w := uexec.NewTask(p.cluster, "executor-worker", p.runWorker)
		p.workers = append(p.workers, w)
		w.Start()
	}
	return p
}

// AffinityBase returns the advisory processor index set via
// [WithAffinityBase], or zero if unset.
func (p *Pool) AffinityBase() int { return p.affinityBase }

func (p *Pool) runWorker(self *uexec.Task) {
	for fn := range p.queue {
		fn(self)
		p.sem.Release(1)
	}
}

// Submit enqueues fn to run on a worker task, blocking until a queue slot
// is free or ctx is done. fn is invoked with the worker task that actually
// runs it, not the caller's task.
func (p *Pool) Submit(ctx context.Context, fn func(*uexec.Task)) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	select {
	case p.queue <- fn:
		return nil
	case <-ctx.Done():
		p.sem.Release(1)
		return ctx.Err()
	}
}

// Group runs fns across the pool concurrently and waits for all of them,
// short-circuiting on the first error per errgroup semantics.
func (p *Pool) Group(ctx context.Context, fns ...func(*uexec.Task) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		fn := fn
		g.Go(func() error {
			done := make(chan error, 1)
			if err := p.Submit(ctx, func(t *uexec.Task) {
				done <- fn(t)
			}); err != nil {
				return err
			}
			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return g.Wait()
}

// Close stops accepting new work, waits for the queue to drain, joins the
// pool's worker tasks, and (if the pool owns its cluster) shuts it down.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
		for _, w := range p.workers {
			<-w.Done()
		}
		if p.ownedCluster {
			p.cluster.Shutdown()
		}
	})
}
