/**
 * @description
 * This file defines the ledger Transaction model and its status workflow.
 *
 * @notes
 * - Amount is signed: credits are positive, debits negative, in minor units.
 * - Only pending->completed, pending->failed and completed->reversed are allowed.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType categorises a ledger entry.
type TransactionType string

const (
	TransactionAdjustment   TransactionType = "adjustment"
	TransactionCheckDeposit TransactionType = "check_deposit"
	TransactionTransfer     TransactionType = "transfer"
	TransactionCardPayment  TransactionType = "card_payment"
)

// TransactionStatus is the settlement state of a ledger entry.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionReversed  TransactionStatus = "reversed"
)

// CanTransitionTo reports whether a transaction may move from s to next.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case TransactionPending:
		return next == TransactionCompleted || next == TransactionFailed
	case TransactionCompleted:
		return next == TransactionReversed
	default:
		return false
	}
}

// BalanceEffect returns the signed change to apply to the account balance
// when a transaction of amount moves from s to next.
func (s TransactionStatus) BalanceEffect(next TransactionStatus, amount int64) int64 {
	switch {
	case s == TransactionPending && next == TransactionCompleted:
		return amount
	case s == TransactionCompleted && next == TransactionReversed:
		return -amount
	default:
		return 0
	}
}

// Transaction is a ledger entry on an account.
type Transaction struct {
	ID           uuid.UUID         `json:"id"`
	AccountID    uuid.UUID         `json:"account_id"`
	Type         TransactionType   `json:"type"`
	Status       TransactionStatus `json:"status"`
	Amount       int64             `json:"amount"`
	Description  string            `json:"description"`
	CreatedBy    *string           `json:"created_by,omitempty"`
	StatusReason *string           `json:"status_reason,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
