package usecase

import (
	"context"
	"log/slog"
	"time"

	"AccidentLoader/internal/ports"
	"AccidentLoader/internal/source"
)

// Scheduler wires the cron driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	request  source.Request
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring loads.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, req source.Request, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{driver: driver, pipeline: pipeline, request: req, logger: logger}
}

// Start registers the pipeline with the provided scheduler. Failed runs are
// logged and the next trigger retries.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		report, err := s.pipeline.Run(ctx, s.request)
		if err != nil {
			s.logger.Error("scheduled load failed", "trigger", trigger, "error", err)
			return
		}
		s.logger.Info("scheduled load done", "trigger", trigger, "saved", report.Saved)
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
