// Package scheduler provides the optional watch mode: an in-process periodic
// collection schedule for deployments without an external cron.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/glucowallet/glucowallet/internal/collector"
)

// runTimeout bounds one scheduled collection run end to end.
const runTimeout = 60 * time.Second

// Scheduler periodically invokes the collector.
type Scheduler struct {
	scheduler *gocron.Scheduler
	collector *collector.Collector
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a Scheduler running one collection per interval.
func New(c *collector.Collector, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		collector: c,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the periodic run and starts the underlying scheduler
// asynchronously. Failed runs are logged and the schedule continues; the next
// tick is the recovery mechanism.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		if err := s.collector.Run(ctx); err != nil {
			s.logger.Error("scheduled collection run failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.logger.Info("watch mode started", zap.Int("interval_minutes", minutes))
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
