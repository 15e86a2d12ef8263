package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, membership_number, email, first_name, last_name, password_hash, us_routing_number, created_at, updated_at`

// CreateUser inserts a new user and fills in its generated ID and timestamps.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (membership_number, email, first_name, last_name, password_hash)
		VALUES ($1, lower(btrim($2)), $3, $4, $5)
		RETURNING id, email, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		user.MembershipNumber,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
	).Scan(&user.ID, &user.Email, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

// FindUserByID retrieves a user from the database by their ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return r.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
}

// FindUserForUpdate retrieves a user and locks its row for the rest of the
// enclosing transaction.
func (r *PostgresRepository) FindUserForUpdate(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return r.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID)
}

func (r *PostgresRepository) findUser(ctx context.Context, query string, userID uuid.UUID) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ListUsers returns users newest first.
func (r *PostgresRepository) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		clampLimit(limit, 50, 500), offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// SetUserRoutingNumber records the US routing number shared by a user's USD
// accounts. An already assigned routing number is never overwritten; that case
// returns ErrDuplicate.
func (r *PostgresRepository) SetUserRoutingNumber(ctx context.Context, userID uuid.UUID, routingNumber string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET us_routing_number = $1, updated_at = NOW() WHERE id = $2 AND us_routing_number IS NULL`,
		routingNumber, userID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}
	return fmt.Errorf("%w: user already has a routing number", ErrDuplicate)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.MembershipNumber,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.USRoutingNumber,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
