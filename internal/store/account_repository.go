/**
 * @description
 * This file implements the data access layer for account-related operations.
 * It provides a clean interface for the application logic to interact with the
 * `accounts` table in the database.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - The service's internal domain package for the Account model.
 */
package store

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, user_id, account_type, currency, account_number, sort_code, iban, routing_number, swift_bic, balance, status, status_reason, created_at, updated_at`

// CreateAccount inserts a new account record into the database.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
        INSERT INTO accounts (user_id, account_type, currency, account_number, sort_code, iban, routing_number, swift_bic, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, balance, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		account.UserID,
		account.Type,
		account.Currency,
		account.AccountNumber,
		account.SortCode,
		account.IBAN,
		account.RoutingNumber,
		account.SwiftBIC,
		account.Status,
	).Scan(&account.ID, &account.Balance, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		log.Printf("Error inserting account into database: %v", err)
		return mapWriteError(err)
	}

	log.Printf("Successfully created account with ID: %s", account.ID)
	return nil
}

// FindAccountByID retrieves an account by its ID.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	return r.findAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
}

// FindAccountForUpdate retrieves an account and locks its row for the rest of
// the enclosing transaction.
func (r *PostgresRepository) FindAccountForUpdate(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	return r.findAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
}

func (r *PostgresRepository) findAccount(ctx context.Context, query string, accountID uuid.UUID) (*domain.Account, error) {
	account, err := scanAccount(r.db.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// ListAccountsByUserID returns a user's accounts, oldest first.
func (r *PostgresRepository) ListAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// UpdateAccountStatus sets the status and the reason for it.
func (r *PostgresRepository) UpdateAccountStatus(ctx context.Context, accountID uuid.UUID, status domain.AccountStatus, reason *string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET status = $1, status_reason = $2, updated_at = NOW() WHERE id = $3`,
		status, reason, accountID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ApplyBalanceChange adds delta to the balance and returns the new balance.
// A change that would leave the balance negative is refused with
// ErrInsufficientFunds and nothing is written.
func (r *PostgresRepository) ApplyBalanceChange(ctx context.Context, accountID uuid.UUID, delta int64) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx,
		`UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2 AND balance + $1 >= 0 RETURNING balance`,
		delta, accountID,
	).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrAccountNotFound
	}
	return 0, ErrInsufficientFunds
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Type,
		&a.Currency,
		&a.AccountNumber,
		&a.SortCode,
		&a.IBAN,
		&a.RoutingNumber,
		&a.SwiftBIC,
		&a.Balance,
		&a.Status,
		&a.StatusReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
