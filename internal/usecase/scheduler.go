package usecase

import (
	"context"
	"log/slog"
	"time"

	"FeedIngestor/internal/ports"
)

// Scheduler wires the ticker driver with the all-users dispatch.
type Scheduler struct {
	driver     ports.Scheduler
	dispatcher ports.Dispatcher
	logger     *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring ingestion.
func NewScheduler(driver ports.Scheduler, dispatcher ports.Dispatcher, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{driver: driver, dispatcher: dispatcher, logger: log}
}

// Start registers the fan-out dispatch with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.dispatcher == nil {
		return nil
	}

	job := func(trigger time.Time) {
		id, err := s.dispatcher.DispatchIngestAllUsers(ctx)
		if err != nil {
			s.logger.Error("dispatch scheduled ingestion", "error", err)
			return
		}
		s.logger.Info("scheduled ingestion dispatched", "task_id", id, "trigger", trigger)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
