// Package uexec provides a user-level M:N concurrency runtime: lightweight
// tasks multiplexed over a small pool of kernel threads (processors), a
// mutex-object (monitor) serialization protocol with bidirectional
// rendezvous ("accept"), condition variables with Mesa semantics, priority
// inheritance, and a timer/preemption subsystem driving time-slicing and
// timed waits.
//
// # Architecture
//
// The kernel is organized leaves-first:
//
//   - [Task]: a schedulable entity with a state machine (New, Ready, Running,
//     Blocked, Halt, Terminate) and a goroutine that is gated by an explicit
//     resume/park handshake, standing in for the stackful context switch of
//     a native implementation (see the context-switch discussion in
//     [Task.run]).
//   - [Cluster]: owns a [ReadyQueue] and a set of [Processor] values; every
//     Ready task lives on exactly one cluster's ready queue.
//   - [Processor]: a goroutine bound 1:1 to a cluster, running the
//     pick-next/switch-to/resume-loop main loop.
//   - [Monitor]: the mutex-object / accept protocol — the hardest and most
//     central subsystem. See [Monitor.Accept].
//   - [Condition]: a FIFO condition variable with Wait/Signal/SignalBlock.
//   - Timer and preemption: see [Cluster]'s time-event queue and
//     [Processor]'s per-dispatch quantum timer.
//   - Asynchronous exceptions: see [Task.Raise] and [Envelope].
//
// # Thread Safety
//
// All shared kernel structures (ready queues, monitors, time queues,
// mailboxes) are protected by short-held spinlocks or mutexes; user code
// inside a monitor operation runs with the ownership flag set but the
// monitor's internal lock released, per the concurrency contract in
// [Monitor].
//
// # Usage
//
//	sys, err := uexec.Boot(uexec.ConfigFromEnv())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sys.Shutdown(context.Background())
//
//	cluster := sys.SystemCluster()
//	task := uexec.NewTask(cluster, "worker", func(t *uexec.Task) {
//	    fmt.Println("hello from a user-level task")
//	})
//	task.Start()
package uexec
