package uexec

import (
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
)

var maxprocsOnce sync.Once

// Config holds the weak defaults the kernel's boot sequence uses,
// overridable by environment variables or by setting fields directly
// before calling [Boot] (spec §6 "Configuration (environment / weak
// defaults overridable by the host program)").
type Config struct {
	// KernelThreads is the number of processors given to the system
	// cluster. Default: container-aware CPU count via automaxprocs,
	// read back as runtime.GOMAXPROCS(0).
	KernelThreads int
	// DefaultQuantum is the preemption time-slice for tasks that do not
	// set their own. Zero disables preemption.
	DefaultQuantum time.Duration
	// DefaultMainStackSize is advisory only in this port (goroutine
	// stacks grow dynamically) but is surfaced for API parity with hosts
	// that size an initial allocation hint from it.
	DefaultMainStackSize int

	// ExecutorProcessors is the processor count for the executor pool's
	// own cluster when SeparateCluster is true.
	ExecutorProcessors int
	// ExecutorWorkers is the number of concurrently dispatched executor
	// tasks.
	ExecutorWorkers int
	// ExecutorQueueLen bounds the executor's pending-request queue.
	ExecutorQueueLen int
	// ExecutorSeparateCluster runs the executor pool on its own cluster
	// instead of the system cluster.
	ExecutorSeparateCluster bool
	// ExecutorAffinityBase is the first processor index reserved for the
	// executor pool when it shares a cluster (advisory; this port does
	// not pin goroutines to specific OS threads beyond LockOSThread).
	ExecutorAffinityBase int

	Logger Logger
}

const (
	envKernelThreads          = "UEXEC_KERNEL_THREADS"
	envDefaultQuantum         = "UEXEC_DEFAULT_QUANTUM_MS"
	envDefaultMainStackSize   = "UEXEC_MAIN_STACK_SIZE"
	envExecutorProcessors     = "UEXEC_EXECUTOR_PROCESSORS"
	envExecutorWorkers        = "UEXEC_EXECUTOR_WORKERS"
	envExecutorQueueLen       = "UEXEC_EXECUTOR_QUEUE_LEN"
	envExecutorSeparateCluster = "UEXEC_EXECUTOR_SEPARATE_CLUSTER"
	envExecutorAffinityBase   = "UEXEC_EXECUTOR_AFFINITY_BASE"
)

// DefaultConfig returns weak defaults with no environment overrides
// applied: container-aware CPU count, no preemption, a modest executor pool.
func DefaultConfig() Config {
	return Config{
		KernelThreads:        cpuCount(),
		DefaultQuantum:       0,
		DefaultMainStackSize: 0,
		ExecutorProcessors:   1,
		ExecutorWorkers:      cpuCount(),
		ExecutorQueueLen:     64,
		ExecutorAffinityBase: 0,
		Logger:               NewNoOpLogger(),
	}
}

// ConfigFromEnv returns DefaultConfig with any UEXEC_* environment
// variables applied on top.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v, ok := envInt(envKernelThreads); ok {
		cfg.KernelThreads = v
	}
	if v, ok := envInt(envDefaultQuantum); ok {
		cfg.DefaultQuantum = time.Duration(v) * time.Millisecond
	}
	if v, ok := envInt(envDefaultMainStackSize); ok {
		cfg.DefaultMainStackSize = v
	}
	if v, ok := envInt(envExecutorProcessors); ok {
		cfg.ExecutorProcessors = v
	}
	if v, ok := envInt(envExecutorWorkers); ok {
		cfg.ExecutorWorkers = v
	}
	if v, ok := envInt(envExecutorQueueLen); ok {
		cfg.ExecutorQueueLen = v
	}
	if v, ok := envBool(envExecutorSeparateCluster); ok {
		cfg.ExecutorSeparateCluster = v
	}
	if v, ok := envInt(envExecutorAffinityBase); ok {
		cfg.ExecutorAffinityBase = v
	}
	return cfg
}

func envInt(name string) (int, bool) {
	s, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envBool(name string) (bool, bool) {
	s, ok := os.LookupEnv(name)
	if !ok {
		return false, false
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, false
	}
	return v, true
}

// cpuCount resolves a container-aware logical CPU count exactly once per
// process, matching the GOMAXPROCS automaxprocs would otherwise set, so
// the kernel's processor count tracks cgroup CPU quotas on container
// hosts instead of the (potentially much larger) host core count.
func cpuCount() int {
	maxprocsOnce.Do(func() {
		_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))
	})
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}
