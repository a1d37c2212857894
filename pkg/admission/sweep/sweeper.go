package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"parkside-labs/gatehouse/pkg/admission/store"
)

// Recorder receives eviction counts for telemetry. Implementations must
// not block.
type Recorder interface {
	RecordSweep(dimension string, deleted int)
}

// Config controls sweep cadence and eviction grace.
type Config struct {
	// Interval is the ticker cadence for the request, burst, and session
	// maps, whose windows are minute-to-hour scale.
	Interval time.Duration

	// Grace is how long past its window end an entry must be before it
	// is evicted.
	Grace time.Duration

	// UsageSchedule is a cron expression for the usage-budget map; its
	// day-scale windows warrant a slower cadence than the ticker.
	UsageSchedule string
}

// Sweeper periodically evicts long-expired entries from the UsageStore to
// bound memory over long uptimes. It is purely an optimization: checks
// lazily reset expired windows themselves, so a missed or delayed sweep
// never changes an admission decision.
type Sweeper struct {
	store    *store.UsageStore
	config   Config
	logger   *slog.Logger
	recorder Recorder

	cron *cron.Cron

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// New creates a Sweeper over the given store. recorder may be nil.
func New(st *store.UsageStore, cfg Config, recorder Recorder, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    st,
		config:   cfg,
		logger:   logger.With("component", "admission.sweeper"),
		recorder: recorder,
		cron:     cron.New(),
	}
}

// Start launches the background sweep loops. It returns immediately; the
// loops run until Stop is called or ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper already running")
	}

	if _, err := cron.ParseStandard(s.config.UsageSchedule); err != nil {
		return fmt.Errorf("invalid usage sweep schedule %q: %w", s.config.UsageSchedule, err)
	}
	if _, err := s.cron.AddFunc(s.config.UsageSchedule, s.sweepUsage); err != nil {
		return fmt.Errorf("failed to schedule usage sweep: %w", err)
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	s.cron.Start()
	go s.tickLoop()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("sweeper started",
		"interval", s.config.Interval,
		"grace", s.config.Grace,
		"usage_schedule", s.config.UsageSchedule,
	)
	return nil
}

// Stop halts the sweep loops and waits for an in-progress pass to finish.
// Safe to call more than once.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false

	close(s.stop)
	<-s.done
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) tickLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweepShortWindows()
		}
	}
}

func (s *Sweeper) sweepShortWindows() {
	grace := s.config.Grace

	if n := s.store.SweepBursts(grace); n > 0 {
		s.record("burst", n)
	}
	if n := s.store.SweepRequests(grace); n > 0 {
		s.record("requests", n)
	}
	if n := s.store.SweepSessions(grace); n > 0 {
		s.record("sessions", n)
	}
}

func (s *Sweeper) sweepUsage() {
	if n := s.store.SweepUsage(s.config.Grace); n > 0 {
		s.record("tokens", n)
	}
}

func (s *Sweeper) record(dimension string, deleted int) {
	s.logger.Debug("swept expired entries", "dimension", dimension, "deleted", deleted)
	if s.recorder != nil {
		s.recorder.RecordSweep(dimension, deleted)
	}
}
