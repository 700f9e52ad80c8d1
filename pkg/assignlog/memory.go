package assignlog

import (
	"context"
	"sync"

	"avos-hq/avos/pkg/experiment"
)

// MemoryLogger implements Logger with an in-memory slice. It is intended
// for testing and previews.
type MemoryLogger struct {
	mu      sync.Mutex
	records []experiment.Assignment
}

// NewMemoryLogger creates an empty in-memory logger.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// LogAssignments appends the records.
func (l *MemoryLogger) LogAssignments(ctx context.Context, assignments []experiment.Assignment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, assignments...)
	return nil
}

// Assignments returns a copy of everything logged so far.
func (l *MemoryLogger) Assignments() []experiment.Assignment {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]experiment.Assignment, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of logged records.
func (l *MemoryLogger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
