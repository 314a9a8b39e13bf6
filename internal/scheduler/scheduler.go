package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/blackmichael/syndicator/internal/domain"
)

// BatchRunner runs a syndication batch over all pending posts.
type BatchRunner interface {
	SyndicatePending(ctx context.Context) (*domain.Summary, error)
}

// Scheduler runs pending-post batches on a cron schedule. A run that is
// still in progress when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	runner BatchRunner
	logger *slog.Logger
	c      *cron.Cron

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler for the given standard five-field cron expression
// or descriptor (e.g. "@every 15m").
func New(spec string, runner BatchRunner, logger *slog.Logger) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	s := &Scheduler{
		runner: runner,
		logger: logger,
		c: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}

	if _, err := s.c.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running batches in the background. Batches inherit ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.c.Start()
	s.logger.Info("scheduler started", "entries", len(s.c.Entries()))
}

// Stop halts the schedule, cancels a running batch and waits for it to
// return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-s.c.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	summary, err := s.runner.SyndicatePending(ctx)
	if err != nil {
		s.logger.Error("scheduled batch failed", "error", err)
		return
	}
	s.logger.Info("scheduled batch finished",
		"run_id", summary.RunID,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
}
