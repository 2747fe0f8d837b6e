package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/naka-gawa/repo-cache/internal/domain"
)

// DefaultSchedule refreshes at the top of every hour.
const DefaultSchedule = "0 * * * *"

// CycleRunner runs one refresh cycle.
type CycleRunner interface {
	Refresh(ctx context.Context) (*domain.CycleSummary, error)
}

// Scheduler runs refresh cycles once at start and then on a cron schedule.
// Cycles never overlap and a failing or panicking cycle is logged, not propagated.
type Scheduler struct {
	runner  CycleRunner
	cron    *cron.Cron
	logger  *slog.Logger
	running sync.Mutex

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler validates spec, a standard five-field cron expression, and returns a
// stopped Scheduler.
func NewScheduler(runner CycleRunner, spec string, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{runner: runner, logger: logger}
	s.cron = cron.New(cron.WithLogger(cronLogger{logger}))
	if _, err := s.cron.AddFunc(spec, s.trigger); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start launches the initial cycle in the background and starts the schedule.
// Cancelling ctx stops any running cycle.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.trigger()
	s.cron.Start()
}

// Stop halts the schedule, cancels the running cycle and waits for it to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// trigger starts a cycle unless one is already in flight.
func (s *Scheduler) trigger() {
	if !s.running.TryLock() {
		s.logger.Warn("previous cache update still running, skipping")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Unlock()
		s.RunOnce(s.ctx)
	}()
}

// RunOnce runs a single cycle in the calling goroutine and reports whether it succeeded.
// Errors and panics are logged.
func (s *Scheduler) RunOnce(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled cache update panicked", "panic", r)
			ok = false
		}
	}()
	if _, err := s.runner.Refresh(ctx); err != nil {
		s.logger.Error("scheduled cache update failed", "error", err)
		return false
	}
	return true
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
