package assignlog

import (
	"context"
	"fmt"

	"avos-hq/avos/pkg/experiment"
)

// Logger is the assignment logger collaborator interface. Implementations
// may be backed by any durable sink.
//
// LogAssignments must either persist every record or return an error; the
// engine does not retry. Implementations must be safe for concurrent use.
type Logger interface {
	LogAssignments(ctx context.Context, assignments []experiment.Assignment) error
}

// Error is a logging-specific failure. The assignment that triggered the
// write remains valid; callers choose whether to ignore, retry, or escalate.
type Error struct {
	// Sink names the logger implementation ("sqlite", "memory", ...).
	Sink string

	// Op is the failed operation.
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("assignment logging failed (%s %s): %v", e.Sink, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError wraps a sink failure.
func NewError(sink, op string, err error) *Error {
	return &Error{Sink: sink, Op: op, Err: err}
}
