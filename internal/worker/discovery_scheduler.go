// Package worker provides the cron-driven discovery scheduler.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ignite/smart-affiliate/internal/discovery"
	"github.com/ignite/smart-affiliate/internal/pkg/logger"
)

// DefaultSchedule runs discovery every six hours.
const DefaultSchedule = "0 */6 * * *"

// Runner executes one discovery run.
type Runner interface {
	RunOnce(ctx context.Context) (*discovery.RunReport, error)
}

// DiscoveryScheduler triggers discovery runs on a cron schedule. Overlapping
// triggers are skipped by the runner's lock.
type DiscoveryScheduler struct {
	runner   Runner
	cron     *cron.Cron
	spec     string
	location *time.Location
	log      *logger.Logger

	// Stats
	totalRuns     int64
	totalSkipped  int64
	totalFailures int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	entryID cron.EntryID
	started bool
}

// NewDiscoveryScheduler validates spec and creates a scheduler in loc.
func NewDiscoveryScheduler(runner Runner, spec string, loc *time.Location) (*DiscoveryScheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if loc == nil {
		loc = time.UTC
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &DiscoveryScheduler{
		runner:   runner,
		cron:     cron.New(cron.WithLocation(loc)),
		spec:     spec,
		location: loc,
		log:      logger.New("worker.scheduler"),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start registers the job and begins the scheduler. Calling Start twice is a no-op.
func (s *DiscoveryScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	id, err := s.cron.AddFunc(s.spec, func() { s.Trigger(s.ctx) })
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	s.entryID = id
	s.cron.Start()
	s.started = true

	s.log.Info("scheduler started", "schedule", s.spec, "timezone", s.location.String(), "next_run", s.nextRunLocked())
	return nil
}

// Stop halts the scheduler and waits for an in-flight run to finish or
// observe cancellation.
func (s *DiscoveryScheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.cron.Remove(s.entryID)
	s.cancel()
	done := s.cron.Stop()
	s.mu.Unlock()

	<-done.Done()
	s.log.Info("scheduler stopped",
		"runs", atomic.LoadInt64(&s.totalRuns),
		"skipped", atomic.LoadInt64(&s.totalSkipped),
		"failures", atomic.LoadInt64(&s.totalFailures))
}

// Trigger executes one run immediately and records the outcome.
func (s *DiscoveryScheduler) Trigger(ctx context.Context) {
	report, err := s.runner.RunOnce(ctx)
	switch {
	case errors.Is(err, discovery.ErrRunInProgress):
		atomic.AddInt64(&s.totalSkipped, 1)
		s.log.Info("discovery run skipped, another run holds the lock")
	case err != nil:
		atomic.AddInt64(&s.totalFailures, 1)
		s.log.Error("discovery run failed", "error", err)
	default:
		atomic.AddInt64(&s.totalRuns, 1)
		s.log.Info("discovery run complete", "run_id", report.RunID, "products", report.Products)
	}
}

// NextRun returns the next scheduled run, or the zero time when stopped.
func (s *DiscoveryScheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunLocked()
}

func (s *DiscoveryScheduler) nextRunLocked() time.Time {
	if !s.started {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Stats returns run counters.
func (s *DiscoveryScheduler) Stats() map[string]int64 {
	return map[string]int64{
		"total_runs":     atomic.LoadInt64(&s.totalRuns),
		"total_skipped":  atomic.LoadInt64(&s.totalSkipped),
		"total_failures": atomic.LoadInt64(&s.totalFailures),
	}
}
