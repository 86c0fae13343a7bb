package uexec

import (
	"context"
	"sync"
)

// System is the root of a running kernel instance: the system cluster,
// its processors, and the reaper that joins terminated tasks (spec §6:
// "applications linked against it gain a main that initializes the system
// cluster, a boot task, a reaper task, and the system processor").
type System struct {
	cfg     Config
	cluster *Cluster

	reapMu      sync.Mutex
	reapCh      chan *Task
	reapDone    chan struct{}
	reapStopped bool
}

// Boot constructs and starts a System: a cluster with cfg.KernelThreads
// processors, ready to accept tasks. Callers must call [System.Shutdown]
// to release its processors.
func Boot(cfg Config) (*System, error) {
	if cfg.Logger == nil {
		cfg.Logger = NewNoOpLogger()
	}
	SetStructuredLogger(cfg.Logger)

	n := cfg.KernelThreads
	if n < 1 {
		n = 1
	}

	cluster := NewCluster(
		WithDefaultQuantum(cfg.DefaultQuantum),
		WithClusterLogger(cfg.Logger),
	)

	sys := &System{
		cfg:      cfg,
		cluster:  cluster,
		reapCh:   make(chan *Task, 64),
		reapDone: make(chan struct{}),
	}

	for i := 0; i < n; i++ {
		cluster.AddProcessor(WithProcessorLogger(cfg.Logger))
	}

	go sys.reap()

	LogInfo(cfg.Logger, "boot", "system booted", map[string]any{"processors": n})
	return sys, nil
}

// SystemCluster returns the system cluster every top-level task runs on
// by default.
func (s *System) SystemCluster() *Cluster { return s.cluster }

// Spawn creates and starts a task on the system cluster, registering it
// with the reaper so its goroutine is joined once it halts.
func (s *System) Spawn(name string, fn func(*Task)) *Task {
	t := NewTask(s.cluster, name, fn)
	t.Start()
	s.reapMu.Lock()
	stopped := s.reapStopped
	s.reapMu.Unlock()
	if !stopped {
		select {
		case s.reapCh <- t:
		default:
			// Reaper queue full: the task still runs and halts normally;
			// it simply is not actively joined before Shutdown's own
			// sweep, which waits on every processor's exit instead.
		}
	}
	return t
}

// reap joins halted tasks as they're registered, primarily so Done()
// channels and any future per-task cleanup hooks fire promptly rather
// than only at Shutdown.
func (s *System) reap() {
	for t := range s.reapCh {
		<-t.Done()
		t.state.TryTransition(StateHalt, StateTerminate)
	}
	close(s.reapDone)
}

// Shutdown stops every processor on the system cluster and waits for the
// reaper to drain. It does not forcibly terminate tasks still Blocked or
// Ready; callers are responsible for arranging their own tasks' orderly
// completion before calling Shutdown, or for accepting that such tasks
// are abandoned.
func (s *System) Shutdown(ctx context.Context) error {
	s.reapMu.Lock()
	if !s.reapStopped {
		s.reapStopped = true
		close(s.reapCh)
	}
	s.reapMu.Unlock()

	s.cluster.Shutdown()

	select {
	case <-s.reapDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
