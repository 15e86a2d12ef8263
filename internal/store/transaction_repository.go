package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, account_id, type, status, amount, description, created_by, status_reason, created_at, updated_at`

// CreateTransaction inserts a ledger transaction.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (account_id, type, status, amount, description, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		txn.AccountID,
		txn.Type,
		txn.Status,
		txn.Amount,
		txn.Description,
		txn.CreatedBy,
	).Scan(&txn.ID, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

// FindTransactionByID retrieves a transaction by its ID.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	return r.findTransaction(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, transactionID)
}

// FindTransactionForUpdate retrieves a transaction and locks its row.
func (r *PostgresRepository) FindTransactionForUpdate(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	return r.findTransaction(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, transactionID)
}

func (r *PostgresRepository) findTransaction(ctx context.Context, query string, transactionID uuid.UUID) (*domain.Transaction, error) {
	txn, err := scanTransaction(r.db.QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return txn, nil
}

// UpdateTransactionStatus sets a transaction's status and reason.
func (r *PostgresRepository) UpdateTransactionStatus(ctx context.Context, transactionID uuid.UUID, status domain.TransactionStatus, reason *string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE transactions SET status = $1, status_reason = $2, updated_at = NOW() WHERE id = $3`,
		status, reason, transactionID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// ListTransactionsByAccountID returns the most recent transactions of an account.
func (r *PostgresRepository) ListTransactionsByAccountID(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2`,
		accountID, clampLimit(limit, 50, 500),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.Type,
		&t.Status,
		&t.Amount,
		&t.Description,
		&t.CreatedBy,
		&t.StatusReason,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
