package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sha1n/invitewatch/internal/domain"
)

// CycleRunner is implemented by Monitor.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*domain.MonitorResult, error)
}

// Scheduler runs cycles on a fixed interval, starting immediately.
// Cycles never overlap: the job runs in singleton mode and RunNow shares
// the same mutex.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	sched    gocron.Scheduler

	ctx    context.Context
	cancel context.CancelFunc

	mu sync.Mutex

	lastMu sync.Mutex
	last   *domain.MonitorResult
}

// NewScheduler creates a scheduler for runner.
func NewScheduler(runner CycleRunner, interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:   runner,
		interval: interval,
		sched:    sched,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start registers the cycle job and starts ticking. The first cycle runs
// right away.
func (s *Scheduler) Start() error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			_, _ = s.RunNow(s.ctx)
		}),
		gocron.WithName("monitor-cycle"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule monitor cycle: %w", err)
	}

	s.sched.Start()
	slog.Info("Scheduler started", "interval", s.interval)
	return nil
}

// RunNow runs one cycle synchronously, waiting for any in-flight cycle to
// finish first. A panic inside the cycle is recovered and returned as an
// error so that the next tick still runs.
func (s *Scheduler) RunNow(ctx context.Context) (result *domain.MonitorResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Cycle panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()

	result, err = s.runner.RunCycle(ctx)
	if result != nil {
		s.lastMu.Lock()
		s.last = result
		s.lastMu.Unlock()
	}
	return result, err
}

// Last returns the most recent cycle result, or nil before the first cycle.
func (s *Scheduler) Last() *domain.MonitorResult {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.last
}

// Shutdown cancels the in-flight cycle and stops the scheduler.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	slog.Info("Scheduler stopped")
	return nil
}
