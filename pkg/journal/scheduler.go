package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs journal pruning on a cron schedule.
type Scheduler struct {
	recorder Recorder
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
	mu       sync.Mutex
	running  bool
}

// NewScheduler creates a scheduler that prunes recorder on the given cron
// expression (standard five-field syntax, e.g. "0 3 * * *" for daily at
// 3 AM).
func NewScheduler(recorder Recorder, schedule string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		recorder: recorder,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "journal.scheduler"),
	}
}

// Start begins scheduled pruning. An empty schedule disables the
// scheduler. The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("journal scheduler already running")
	}

	if s.schedule == "" {
		s.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runPrune(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule journal pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("journal scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) runPrune(ctx context.Context) {
	deleted, err := s.recorder.Prune(ctx)
	if err != nil {
		s.logger.Error("journal pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("journal pruning complete", "deleted", deleted)
	}
}

// Stop halts scheduled pruning. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("journal scheduler stopped")
}
