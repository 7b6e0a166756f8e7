package intel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the collector on a cron schedule, by default daily.
type Scheduler struct {
	collector *Collector
	timeline  *Timeline
	schedule  string
	cron      *cron.Cron
	mu        sync.Mutex
	logger    *slog.Logger
	running   bool
}

// NewScheduler creates a scheduler for the collector. An empty schedule
// disables scheduled collection; RunOnce still works.
func NewScheduler(collector *Collector, timeline *Timeline, schedule string) *Scheduler {
	return &Scheduler{
		collector: collector,
		timeline:  timeline,
		schedule:  schedule,
		cron:      cron.New(),
		logger:    slog.Default().With("component", "intel.scheduler"),
	}
}

// Start begins scheduled collection. It validates the cron expression
// first and stops the scheduler when the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("timeline schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.collector.Collect(ctx, s.timeline); err != nil {
			s.logger.Error("scheduled timeline collection failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule timeline collection: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("timeline scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// RunOnce collects immediately, outside the schedule.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.collector.Collect(ctx, s.timeline)
}

// Stop stops the scheduler and waits for a running collection to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("timeline scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
