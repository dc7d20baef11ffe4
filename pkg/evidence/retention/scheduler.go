package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a Pruner on the cron expression in its PruneSchedule.
// Overlapping runs are skipped; a run still in progress when the next tick
// fires keeps going and the tick is dropped.
type Scheduler struct {
	pruner *Pruner
	logger *slog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	entry  cron.EntryID
	cancel context.CancelFunc
	done   chan struct{}
	last   RunResult
}

// RunResult describes the most recent scheduled prune.
type RunResult struct {
	At      time.Time
	Deleted int64
	Err     error
}

// NewScheduler creates a stopped scheduler for pruner.
func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{
		pruner: pruner,
		logger: slog.Default().With("component", "evidence.scheduler"),
	}
}

// Start begins scheduled pruning. The scheduler stops when ctx ends or Stop
// is called. An empty schedule leaves the scheduler stopped.
func (s *Scheduler) Start(ctx context.Context) error {
	spec := s.pruner.config.PruneSchedule

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return errors.New("retention scheduler already running")
	}
	if spec == "" {
		s.logger.Info("prune schedule not configured, scheduler disabled")
		return nil
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	s.entry = c.Schedule(schedule, cron.FuncJob(func() { s.run(runCtx) }))
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.stopOnDone(runCtx, s.done)

	s.logger.Info("retention scheduler started",
		"schedule", spec,
		"retention_days", s.pruner.config.RetentionDays,
		"max_records", s.pruner.config.MaxRecords,
	)
	return nil
}

func (s *Scheduler) stopOnDone(ctx context.Context, done <-chan struct{}) {
	select {
	case <-ctx.Done():
		s.Stop()
	case <-done:
	}
}

func (s *Scheduler) run(ctx context.Context) {
	started := time.Now()
	deleted, err := s.pruner.Prune(ctx)

	s.mu.Lock()
	s.last = RunResult{At: started, Deleted: deleted, Err: err}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled pruning failed", "error", err)
		return
	}
	s.logger.Info("scheduled pruning completed",
		"deleted", deleted,
		"duration", time.Since(started),
	)
}

// Stop halts the schedule and waits for a prune in progress to finish.
// It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel, done := s.cron, s.cancel, s.done
	s.cron, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	close(done)
	<-c.Stop().Done()
	cancel()
	s.logger.Info("retention scheduler stopped")
}

// IsRunning reports whether a schedule is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// NextRun returns the next scheduled prune, or nil when stopped.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return nil
	}
	next := s.cron.Entry(s.entry).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// LastRun returns the result of the most recent scheduled prune. At is zero
// before the first run.
func (s *Scheduler) LastRun() RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
