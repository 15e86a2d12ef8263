package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

const depositColumns = `id, account_id, transaction_id, amount, check_number, image_ref, status, reviewed_by, rejection_reason, created_at, reviewed_at`

// CreateCheckDeposit inserts a pending check deposit.
func (r *PostgresRepository) CreateCheckDeposit(ctx context.Context, deposit *domain.CheckDeposit) error {
	query := `
		INSERT INTO check_deposits (account_id, transaction_id, amount, check_number, image_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		deposit.AccountID,
		deposit.TransactionID,
		deposit.Amount,
		deposit.CheckNumber,
		deposit.ImageRef,
		deposit.Status,
	).Scan(&deposit.ID, &deposit.CreatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

// FindCheckDepositForUpdate retrieves a deposit and locks it for review.
func (r *PostgresRepository) FindCheckDepositForUpdate(ctx context.Context, depositID uuid.UUID) (*domain.CheckDeposit, error) {
	deposit, err := scanDeposit(r.db.QueryRow(ctx, `SELECT `+depositColumns+` FROM check_deposits WHERE id = $1 FOR UPDATE`, depositID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepositNotFound
		}
		return nil, err
	}
	return deposit, nil
}

// ListPendingDeposits returns pending deposits, oldest first.
func (r *PostgresRepository) ListPendingDeposits(ctx context.Context, limit int) ([]domain.CheckDeposit, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+depositColumns+` FROM check_deposits WHERE status = 'pending' ORDER BY created_at LIMIT $1`,
		clampLimit(limit, 50, 500),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deposits := []domain.CheckDeposit{}
	for rows.Next() {
		deposit, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, *deposit)
	}
	return deposits, rows.Err()
}

// ListStalePendingDepositIDs returns pending deposits submitted before the cutoff.
func (r *PostgresRepository) ListStalePendingDepositIDs(ctx context.Context, submittedBefore time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM check_deposits WHERE status = 'pending' AND created_at < $1 ORDER BY created_at LIMIT $2`,
		submittedBefore, clampLimit(limit, 100, 1000),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkDepositReviewed records the outcome of an admin review.
func (r *PostgresRepository) MarkDepositReviewed(ctx context.Context, depositID uuid.UUID, status domain.DepositStatus, reviewer string, reason *string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE check_deposits
		SET status = $1, reviewed_by = $2, rejection_reason = $3, reviewed_at = NOW()
		WHERE id = $4 AND status = 'pending'
	`, status, reviewer, reason, depositID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDepositNotFound
	}
	return nil
}

func scanDeposit(row pgx.Row) (*domain.CheckDeposit, error) {
	var d domain.CheckDeposit
	err := row.Scan(
		&d.ID,
		&d.AccountID,
		&d.TransactionID,
		&d.Amount,
		&d.CheckNumber,
		&d.ImageRef,
		&d.Status,
		&d.ReviewedBy,
		&d.RejectionReason,
		&d.CreatedAt,
		&d.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
