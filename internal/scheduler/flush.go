// Package scheduler triggers the periodic repository cache flush.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Flusher empties a cache and reports how many entries it dropped.
type Flusher interface {
	Flush() int
}

// MinFlushPeriod is the shortest period the cron @every schedule honours.
const MinFlushPeriod = time.Second

// FlushScheduler calls Flush every period.
type FlushScheduler struct {
	flusher Flusher
	period  time.Duration
	onFlush func(dropped int)
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewFlushScheduler creates a scheduler for flusher. onFlush, when not nil,
// runs after every flush.
func NewFlushScheduler(flusher Flusher, period time.Duration, onFlush func(dropped int), logger *slog.Logger) *FlushScheduler {
	return &FlushScheduler{
		flusher: flusher,
		period:  period,
		onFlush: onFlush,
		cron:    cron.New(),
		logger:  logger.With("component", "flush-scheduler"),
	}
}

// Start schedules the flush job. The scheduler stops when ctx is done.
func (s *FlushScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("flush scheduler already running")
	}
	if s.period < MinFlushPeriod {
		return fmt.Errorf("invalid flush period %v: must be at least %v", s.period, MinFlushPeriod)
	}
	spec := "@every " + s.period.String()
	if _, err := s.cron.AddFunc(spec, s.runFlush); err != nil {
		return fmt.Errorf("failed to schedule cache flush %q: %w", spec, err)
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("flush scheduler started", slog.Duration("period", s.period))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *FlushScheduler) runFlush() {
	dropped := s.flusher.Flush()
	s.logger.Debug("repository cache flushed", slog.Int("dropped", dropped))
	if s.onFlush != nil {
		s.onFlush(dropped)
	}
}

// Stop stops the scheduler and waits for a running flush to complete.
func (s *FlushScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("flush scheduler stopped")
}

func (s *FlushScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled flush, or nil when nothing is scheduled.
func (s *FlushScheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
