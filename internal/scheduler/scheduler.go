// Package scheduler wires up the cron job that deletes listings whose end
// date has passed.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Deleter removes listings whose date-to is before the given day.
type Deleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler wraps robfig/cron and runs the cleanup.
type Scheduler struct {
	cron    *cron.Cron
	deleter Deleter
	spec    string // cron spec, e.g. "@daily"
	logger  *slog.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

// New creates a Scheduler that runs the cleanup on spec.
func New(deleter Deleter, spec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLogger{logger})),
		deleter: deleter,
		spec:    spec,
		logger:  logger,
		now:     time.Now,
	}
}

// Start registers the job and starts the scheduler. One cleanup also runs
// immediately so stale listings do not wait for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.Cleanup(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Cleanup scheduled", "spec", s.spec)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Cleanup(ctx)
	}()

	return nil
}

// Stop shuts the scheduler down and waits for running cleanups to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("Cleanup scheduler stopped")
}

// Cleanup deletes every listing that ended before today (UTC). Failures are
// logged; the next tick tries again.
func (s *Scheduler) Cleanup(ctx context.Context) {
	today := s.now().UTC().Truncate(24 * time.Hour)

	n, err := s.deleter.DeleteExpired(ctx, today)
	if err != nil {
		s.logger.Error("Expired listing cleanup failed", "before", today.Format(time.DateOnly), "error", err.Error())
		return
	}
	s.logger.Info("Expired listings deleted", "count", n, "before", today.Format(time.DateOnly))
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
