/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface:
 * the shared connection handle, transaction scoping and the identifier
 * existence checks used by the identifier generator.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/idgen: The identifier fields that may be checked for existence.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hometown/backoffice-service/internal/idgen"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
	db   DBTX
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, db: pool}
}

// WithTx runs fn inside a single database transaction. The transaction commits
// only when fn returns nil; any error rolls back every write made through the
// Repository passed to fn. Nested calls join the outer transaction.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	if r.pool == nil {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PostgresRepository{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", mapWriteError(err))
	}
	return nil
}

// existsQueries holds one prepared existence query per allocatable field.
// Table and column names never come from callers directly.
var existsQueries = func() map[idgen.Field]string {
	fields := []idgen.Field{
		idgen.MembershipNumberField,
		idgen.USRoutingNumberField,
		idgen.AccountNumberField,
		idgen.SortCodeField,
		idgen.IBANField,
		idgen.CardNumberField,
	}
	queries := make(map[idgen.Field]string, len(fields))
	for _, f := range fields {
		queries[f] = fmt.Sprintf(
			"SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)",
			pgx.Identifier{f.Table}.Sanitize(),
			pgx.Identifier{f.Column}.Sanitize(),
		)
	}
	return queries
}()

// Exists reports whether value is already stored in field.
func (r *PostgresRepository) Exists(ctx context.Context, field idgen.Field, value string) (bool, error) {
	query, ok := existsQueries[field]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, query, value).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// mapWriteError turns unique violations into ErrDuplicate.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		log.Printf("unique constraint violation on %s", pgErr.ConstraintName)
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

func clampLimit(limit, fallback, ceiling int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > ceiling {
		return ceiling
	}
	return limit
}
