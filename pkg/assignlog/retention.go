package assignlog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// PruneTarget is a sink that supports deleting aged records.
type PruneTarget interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner deletes assignment records older than a retention window.
type Pruner struct {
	target PruneTarget
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewPruner creates a pruner that keeps records younger than maxAge.
func NewPruner(target PruneTarget, maxAge time.Duration) *Pruner {
	return &Pruner{
		target: target,
		maxAge: maxAge,
		logger: slog.Default().With("component", "assignlog.pruner"),
		now:    time.Now,
	}
}

// Prune deletes everything older than the retention window and returns the
// number of deleted records.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	cutoff := p.now().UTC().Add(-p.maxAge)
	deleted, err := p.target.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention prune failed: %w", err)
	}
	return deleted, nil
}

// Scheduler runs the pruner on a cron schedule. This is a collaborator-side
// concern: the engine core itself runs no background tasks.
type Scheduler struct {
	pruner   *Pruner
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler running the pruner on the given cron
// expression (e.g., "0 3 * * *" for daily at 3 AM).
func NewScheduler(pruner *Pruner, schedule string) *Scheduler {
	return &Scheduler{
		pruner:   pruner,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "assignlog.scheduler"),
	}
}

// Start begins scheduled pruning.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		deleted, err := s.pruner.Prune(context.Background())
		if err != nil {
			s.logger.Error("scheduled prune failed", "error", err)
			return
		}
		s.logger.Info("scheduled prune completed", "deleted", deleted)
	})
	if err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("retention scheduler started", "schedule", s.schedule)
	return nil
}

// Stop halts scheduled pruning, waiting for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("retention scheduler stopped")
}
