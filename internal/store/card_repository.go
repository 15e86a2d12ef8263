package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

const cardColumns = `id, account_id, card_number, cardholder_name, expiry_month, expiry_year, cvv_hash, pin_hash, status, created_at, updated_at`

// CreateCard inserts a newly issued card.
func (r *PostgresRepository) CreateCard(ctx context.Context, card *domain.Card) error {
	query := `
		INSERT INTO cards (account_id, card_number, cardholder_name, expiry_month, expiry_year, cvv_hash, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		card.AccountID,
		card.CardNumber,
		card.CardholderName,
		card.ExpiryMonth,
		card.ExpiryYear,
		card.CVVHash,
		card.Status,
	).Scan(&card.ID, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	card.MaskedNumber = MaskCardNumber(card.CardNumber)
	return nil
}

// FindCardByID retrieves a card by its ID.
func (r *PostgresRepository) FindCardByID(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	card, err := scanCard(r.db.QueryRow(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, cardID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return card, nil
}

// ListCardsByAccountID returns the cards issued against an account, newest first.
func (r *PostgresRepository) ListCardsByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Card, error) {
	rows, err := r.db.Query(ctx, `SELECT `+cardColumns+` FROM cards WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []domain.Card{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// UpdateCardPIN stores a new PIN hash together with the resulting card status.
func (r *PostgresRepository) UpdateCardPIN(ctx context.Context, cardID uuid.UUID, pinHash string, status domain.CardStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE cards SET pin_hash = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		pinHash, status, cardID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCardNotFound
	}
	return nil
}

// UpdateCardStatus sets a card's status.
func (r *PostgresRepository) UpdateCardStatus(ctx context.Context, cardID uuid.UUID, status domain.CardStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE cards SET status = $1, updated_at = NOW() WHERE id = $2`, status, cardID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCardNotFound
	}
	return nil
}

// ExpireCards marks every non-terminal card whose expiry month ended before
// now as expired and returns how many were changed.
func (r *PostgresRepository) ExpireCards(ctx context.Context, now time.Time) (int64, error) {
	year, month, _ := now.UTC().Date()
	tag, err := r.db.Exec(ctx, `
		UPDATE cards SET status = 'expired', updated_at = NOW()
		WHERE status IN ('inactive', 'active', 'blocked')
		  AND (expiry_year < $1 OR (expiry_year = $1 AND expiry_month < $2))
	`, year, int(month))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MaskCardNumber keeps the first six and last four digits.
func MaskCardNumber(number string) string {
	if len(number) < 10 {
		return "****"
	}
	masked := []byte(number)
	for i := 6; i < len(masked)-4; i++ {
		masked[i] = '*'
	}
	return string(masked)
}

func scanCard(row pgx.Row) (*domain.Card, error) {
	var c domain.Card
	err := row.Scan(
		&c.ID,
		&c.AccountID,
		&c.CardNumber,
		&c.CardholderName,
		&c.ExpiryMonth,
		&c.ExpiryYear,
		&c.CVVHash,
		&c.PINHash,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.MaskedNumber = MaskCardNumber(c.CardNumber)
	c.PINSet = c.PINHash != nil && *c.PINHash != ""
	return &c, nil
}
