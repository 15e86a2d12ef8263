package domain

import (
	"time"

	"github.com/google/uuid"
)

// CardStatus is the lifecycle state of a payment card.
type CardStatus string

const (
	CardInactive  CardStatus = "inactive"
	CardActive    CardStatus = "active"
	CardBlocked   CardStatus = "blocked"
	CardExpired   CardStatus = "expired"
	CardCancelled CardStatus = "cancelled"
)

// Terminal reports whether no further status change is allowed.
func (s CardStatus) Terminal() bool {
	return s == CardCancelled || s == CardExpired
}

// Card is a debit card issued against an account.
type Card struct {
	ID             uuid.UUID  `json:"id"`
	AccountID      uuid.UUID  `json:"account_id"`
	CardNumber     string     `json:"-"`
	MaskedNumber   string     `json:"masked_number"`
	CardholderName string     `json:"cardholder_name"`
	ExpiryMonth    int        `json:"expiry_month"`
	ExpiryYear     int        `json:"expiry_year"`
	CVVHash        string     `json:"-"`
	PINHash        *string    `json:"-"`
	PINSet         bool       `json:"pin_set"`
	Status         CardStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IssuedCard is returned once at issuance; the CVV is never readable again.
type IssuedCard struct {
	Card
	CardNumber string `json:"card_number"`
	CVV        string `json:"cvv"`
}
