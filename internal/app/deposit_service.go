package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/hometown/backoffice-service/internal/store"
)

const (
	expiredDepositReason = "expired"
	systemReviewer       = "system"
	staleDepositBatch    = 100
)

// DepositService handles check deposits from submission to review.
type DepositService struct {
	repo      store.Repository
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewDepositService creates a new instance of DepositService.
func NewDepositService(repo store.Repository, publisher EventPublisher, logger *slog.Logger) *DepositService {
	return &DepositService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// SubmitDepositInput defines a customer check deposit.
type SubmitDepositInput struct {
	OwnerID     uuid.UUID
	AccountID   uuid.UUID
	Amount      int64
	CheckNumber string
	ImageRef    string
}

// SubmitCheckDeposit records a pending deposit and its pending ledger entry.
func (s *DepositService) SubmitCheckDeposit(ctx context.Context, input SubmitDepositInput) (*domain.CheckDeposit, error) {
	if input.Amount <= 0 {
		return nil, invalidInput("amount must be positive")
	}
	checkNumber := strings.TrimSpace(input.CheckNumber)
	if checkNumber == "" {
		return nil, invalidInput("check number is required")
	}
	imageRef := strings.TrimSpace(input.ImageRef)
	if imageRef == "" {
		return nil, invalidInput("check image reference is required")
	}

	var deposit *domain.CheckDeposit
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		account, err := tx.FindAccountByID(ctx, input.AccountID)
		if err != nil {
			return err
		}
		if account.UserID != input.OwnerID {
			return ErrForbidden
		}
		if account.Status != domain.AccountActive {
			return ErrAccountNotActive
		}

		txn := &domain.Transaction{
			AccountID:   input.AccountID,
			Type:        domain.TransactionCheckDeposit,
			Status:      domain.TransactionPending,
			Amount:      input.Amount,
			Description: "Check deposit #" + checkNumber,
			CreatedBy:   stringPtr(input.OwnerID.String()),
		}
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return err
		}

		deposit = &domain.CheckDeposit{
			AccountID:     input.AccountID,
			TransactionID: txn.ID,
			Amount:        input.Amount,
			CheckNumber:   checkNumber,
			ImageRef:      imageRef,
			Status:        domain.DepositPending,
		}
		return tx.CreateCheckDeposit(ctx, deposit)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("check deposit submitted", "deposit_id", deposit.ID, "account_id", deposit.AccountID, "amount", deposit.Amount)
	return deposit, nil
}

// ApproveDeposit completes the ledger entry and credits the account.
func (s *DepositService) ApproveDeposit(ctx context.Context, depositID uuid.UUID, adminID string) (*domain.CheckDeposit, error) {
	var deposit *domain.CheckDeposit
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		var err error
		deposit, err = lockPendingDeposit(ctx, tx, depositID)
		if err != nil {
			return err
		}
		account, err := tx.FindAccountForUpdate(ctx, deposit.AccountID)
		if err != nil {
			return err
		}
		if account.Status != domain.AccountActive {
			return ErrAccountNotActive
		}
		if err := tx.MarkDepositReviewed(ctx, depositID, domain.DepositApproved, adminID, nil); err != nil {
			return err
		}
		if err := tx.UpdateTransactionStatus(ctx, deposit.TransactionID, domain.TransactionCompleted, nil); err != nil {
			return err
		}
		if _, err := tx.ApplyBalanceChange(ctx, deposit.AccountID, deposit.Amount); err != nil {
			return err
		}
		s.markReviewed(deposit, domain.DepositApproved, adminID, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("check deposit approved", "deposit_id", depositID, "admin_id", adminID, "amount", deposit.Amount)
	s.publishReviewed(ctx, deposit, RoutingKeyDepositApproved)
	return deposit, nil
}

// RejectDeposit fails the ledger entry without touching the balance.
func (s *DepositService) RejectDeposit(ctx context.Context, depositID uuid.UUID, adminID, reason string) (*domain.CheckDeposit, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalidInput("rejection reason is required")
	}
	deposit, err := s.reject(ctx, depositID, adminID, reason)
	if err != nil {
		return nil, err
	}
	s.logger.Info("check deposit rejected", "deposit_id", depositID, "admin_id", adminID)
	return deposit, nil
}

func (s *DepositService) reject(ctx context.Context, depositID uuid.UUID, reviewer, reason string) (*domain.CheckDeposit, error) {
	var deposit *domain.CheckDeposit
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		var err error
		deposit, err = lockPendingDeposit(ctx, tx, depositID)
		if err != nil {
			return err
		}
		if err := tx.MarkDepositReviewed(ctx, depositID, domain.DepositRejected, reviewer, &reason); err != nil {
			return err
		}
		if err := tx.UpdateTransactionStatus(ctx, deposit.TransactionID, domain.TransactionFailed, &reason); err != nil {
			return err
		}
		s.markReviewed(deposit, domain.DepositRejected, reviewer, &reason)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishReviewed(ctx, deposit, RoutingKeyDepositRejected)
	return deposit, nil
}

// ExpireStaleDeposits rejects deposits still pending after olderThan.
func (s *DepositService) ExpireStaleDeposits(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	ids, err := s.repo.ListStalePendingDepositIDs(ctx, cutoff, staleDepositBatch)
	if err != nil {
		return 0, fmt.Errorf("could not list stale deposits: %w", err)
	}

	expired := 0
	for _, id := range ids {
		if _, err := s.reject(ctx, id, systemReviewer, expiredDepositReason); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				// Reviewed since it was listed.
				continue
			}
			s.logger.Error("failed to expire check deposit", "deposit_id", id, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}

// ListPendingDeposits returns the oldest deposits awaiting review.
func (s *DepositService) ListPendingDeposits(ctx context.Context, limit int) ([]domain.CheckDeposit, error) {
	return s.repo.ListPendingDeposits(ctx, limit)
}

func lockPendingDeposit(ctx context.Context, tx store.Repository, depositID uuid.UUID) (*domain.CheckDeposit, error) {
	deposit, err := tx.FindCheckDepositForUpdate(ctx, depositID)
	if err != nil {
		return nil, err
	}
	if deposit.Status != domain.DepositPending {
		return nil, fmt.Errorf("%w: deposit is %s", ErrInvalidTransition, deposit.Status)
	}
	txn, err := tx.FindTransactionForUpdate(ctx, deposit.TransactionID)
	if err != nil {
		return nil, err
	}
	if txn.Status != domain.TransactionPending {
		return nil, fmt.Errorf("%w: deposit transaction is %s", ErrInvalidTransition, txn.Status)
	}
	return deposit, nil
}

func (s *DepositService) markReviewed(deposit *domain.CheckDeposit, status domain.DepositStatus, reviewer string, reason *string) {
	reviewedAt := s.now().UTC()
	deposit.Status = status
	deposit.ReviewedBy = &reviewer
	deposit.RejectionReason = reason
	deposit.ReviewedAt = &reviewedAt
}

func (s *DepositService) publishReviewed(ctx context.Context, deposit *domain.CheckDeposit, routingKey string) {
	publish(ctx, s.publisher, s.logger, routingKey, domain.DepositReviewedEvent{
		DepositID: deposit.ID,
		AccountID: deposit.AccountID,
		Amount:    deposit.Amount,
		Status:    deposit.Status,
	})
}
