package outcomes

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the resolver on a cron schedule so pending snapshots are
// matched against realized prices without an external trigger.
type Sweeper struct {
	resolver *Resolver
	symbols  []string
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewSweeper creates a sweeper for the given symbols. An empty schedule
// disables scheduled sweeps; RunOnce still works.
func NewSweeper(resolver *Resolver, symbols []string, schedule string) *Sweeper {
	return &Sweeper{
		resolver: resolver,
		symbols:  symbols,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "outcomes.sweeper"),
	}
}

// Start begins scheduled resolution sweeps. It validates the cron
// expression first and stops the sweeper when the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.sweep(ctx); err != nil {
			s.logger.Error("scheduled resolution sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule resolution sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("resolution sweeper started", "schedule", s.schedule, "symbols", len(s.symbols))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// RunOnce sweeps immediately, outside the schedule.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	return s.sweep(ctx)
}

// Stop halts scheduled sweeps. In-flight sweeps finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	s.logger.Info("resolution sweeper stopped")
}

// IsRunning reports whether scheduled sweeps are active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) sweep(ctx context.Context) error {
	asOf := time.Now().UTC()
	var firstErr error
	for _, symbol := range s.symbols {
		resolved, err := s.resolver.Resolve(ctx, symbol, asOf)
		if err != nil {
			s.logger.Error("resolution sweep failed", "symbol", symbol, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("sweep %s: %w", symbol, err)
			}
			continue
		}
		if resolved > 0 {
			s.logger.Info("snapshots resolved", "symbol", symbol, "count", resolved)
		}
	}
	return firstErr
}
