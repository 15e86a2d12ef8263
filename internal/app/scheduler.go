/**
 * @description
 * Cron scheduler setup for the maintenance jobs.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/hometown/backoffice-service/internal/config"
	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.config.DepositExpirySchedule, s.jobs.ExpireStaleDeposits); err != nil {
		s.logger.Error("failed to schedule check deposit expiry job", "error", err)
		return err
	}
	s.logger.Info("scheduled check deposit expiry job", "schedule", s.config.DepositExpirySchedule)

	if _, err := s.cron.AddFunc(s.config.CardExpirySchedule, s.jobs.ExpireCards); err != nil {
		s.logger.Error("failed to schedule card expiry job", "error", err)
		return err
	}
	s.logger.Info("scheduled card expiry job", "schedule", s.config.CardExpirySchedule)

	s.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
