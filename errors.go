package uexec

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Use errors.Is against these to classify a
// *KernelError without inspecting its Message.
var (
	// ErrEntryFailure is returned when a mutex call is made on an object
	// being destroyed.
	ErrEntryFailure = errors.New("uexec: entry on object being destroyed")

	// ErrBrokenCondition classifies a condition variable whose owning
	// monitor no longer exists. No operation in this package returns it:
	// Condition does not track whether its monitor has been closed.
	ErrBrokenCondition = errors.New("uexec: condition's monitor no longer exists")

	// ErrUnhandledNonLocal classifies an asynchronous exception that
	// arrives at a task with no matching handler. No operation in this
	// package returns it: an unrecovered delivery panic is logged by the
	// task's goroutine and the task halts.
	ErrUnhandledNonLocal = errors.New("uexec: unhandled non-local exception")

	// ErrTimeoutExpired indicates a timed wait observed its deadline. Not
	// an error in the exceptional sense — returned via a two-value result
	// wherever possible — but classified here for the cases where it must
	// travel through an error-returning API.
	ErrTimeoutExpired = errors.New("uexec: timed operation expired")

	// ErrDeadlock classifies a shutdown with all processors idle, all
	// tasks Blocked and no timer pending. No deadlock detection exists in
	// this package: System.Shutdown never returns it.
	ErrDeadlock = errors.New("uexec: deadlock detected at shutdown")

	// ErrFatal marks an internal invariant violation. The process should
	// terminate after attempting to flush debug output; see [Fatal].
	ErrFatal = errors.New("uexec: fatal internal invariant violation")
)

// KernelError wraps one of the sentinel error kinds above with a
// human-readable message and optional cause, following the
// Unwrap/errors.Is/errors.As conventions used throughout this package.
type KernelError struct {
	Kind    error
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *KernelError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Message)
}

// Unwrap returns the sentinel kind first (so errors.Is matches it) and
// chains to Cause via errors.Is/As's multi-error support.
func (e *KernelError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// newKernelError constructs a *KernelError for the given sentinel kind.
func newKernelError(kind error, format string, args ...any) *KernelError {
	return &KernelError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Fatal panics with an *KernelError wrapping [ErrFatal] after logging the
// violation through the package logger. Precondition violations inside the
// kernel are fatal by policy (spec §7); this is the single call site that
// enforces it.
func Fatal(category, format string, args ...any) {
	err := newKernelError(ErrFatal, format, args...)
	LogError(getGlobalLogger(), category, "fatal invariant violation", err, nil)
	panic(err)
}
