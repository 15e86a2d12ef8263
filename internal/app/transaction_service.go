package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/hometown/backoffice-service/internal/store"
)

// TransactionService moves ledger entries through their status workflow.
type TransactionService struct {
	repo   store.Repository
	logger *slog.Logger
}

// NewTransactionService creates a new instance of TransactionService.
func NewTransactionService(repo store.Repository, logger *slog.Logger) *TransactionService {
	return &TransactionService{repo: repo, logger: logger}
}

// UpdateStatus applies a status change and its balance effect together.
// Check deposit entries only move through the deposit review workflow.
func (s *TransactionService) UpdateStatus(ctx context.Context, transactionID uuid.UUID, next domain.TransactionStatus, reason string) (*domain.Transaction, error) {
	reason = strings.TrimSpace(reason)

	var (
		txn      *domain.Transaction
		previous domain.TransactionStatus
	)
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		var err error
		txn, err = tx.FindTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn.Type == domain.TransactionCheckDeposit {
			return fmt.Errorf("%w: check deposits are reviewed through the deposit queue", ErrInvalidTransition)
		}
		if !txn.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: transaction %s -> %s", ErrInvalidTransition, txn.Status, next)
		}

		if effect := txn.Status.BalanceEffect(next, txn.Amount); effect != 0 {
			account, err := tx.FindAccountForUpdate(ctx, txn.AccountID)
			if err != nil {
				return err
			}
			if account.Status == domain.AccountClosed {
				return ErrAccountNotActive
			}
			if _, err := tx.ApplyBalanceChange(ctx, txn.AccountID, effect); err != nil {
				return err
			}
		}

		if err := tx.UpdateTransactionStatus(ctx, transactionID, next, stringPtr(reason)); err != nil {
			return err
		}
		previous = txn.Status
		txn.Status = next
		txn.StatusReason = stringPtr(reason)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction status changed", "transaction_id", transactionID, "from", previous, "to", next)
	return txn, nil
}

// ListTransactions returns the newest ledger entries of an account.
func (s *TransactionService) ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	return s.repo.ListTransactionsByAccountID(ctx, accountID, limit)
}
