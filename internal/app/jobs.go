/**
 * @description
 * Scheduled maintenance jobs for the back office.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/hometown/backoffice-service/internal/config"
	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/hometown/backoffice-service/internal/store"
)

// DepositExpirer rejects deposits left pending for too long.
type DepositExpirer interface {
	ExpireStaleDeposits(ctx context.Context, olderThan time.Duration) (int, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	deposits DepositExpirer
	cards    store.CardRepository
	logger   *slog.Logger
	config   config.Config
	now      func() time.Time
}

// NewJobs creates a new Jobs runner.
func NewJobs(deposits DepositExpirer, cards store.CardRepository, logger *slog.Logger, cfg config.Config) *Jobs {
	return &Jobs{
		deposits: deposits,
		cards:    cards,
		logger:   logger,
		config:   cfg,
		now:      time.Now,
	}
}

// ExpireStaleDeposits rejects check deposits older than DEPOSIT_EXPIRY_DAYS.
func (j *Jobs) ExpireStaleDeposits() {
	j.logger.Info("starting check deposit expiry job")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	olderThan := time.Duration(j.config.DepositExpiryDays) * 24 * time.Hour
	expired, err := j.deposits.ExpireStaleDeposits(ctx, olderThan)
	if err != nil {
		j.logger.Error("failed to expire check deposits", "error", err)
		return
	}

	j.logger.Info("check deposit expiry job finished", "expired", expired)
}

// ExpireCards moves cards past their expiry month to expired.
func (j *Jobs) ExpireCards() {
	j.logger.Info("starting card expiry job")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	expired, err := j.cards.ExpireCards(ctx, j.now().UTC())
	if err != nil {
		j.logger.Error("failed to expire cards", "error", err)
		return
	}

	j.logger.Info("card expiry job finished", "expired", expired, "status", domain.CardExpired)
}
