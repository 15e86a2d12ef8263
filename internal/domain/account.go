/**
 * @description
 * This file defines the core domain model for an Account within the back office.
 * An account carries the bank identifiers allocated at opening time: the
 * account number plus exactly one currency-specific routing scheme (sort code
 * for GBP, IBAN only for EUR, routing number for USD).
 *
 * @notes
 * - Balances are stored in minor units (pence / cents).
 * - Identifiers are written once at creation and never regenerated.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountType defines the type of a customer account.
type AccountType string

const (
	CurrentAccount AccountType = "current"
	SavingsAccount AccountType = "savings"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	return t == CurrentAccount || t == SavingsAccount
}

// Currency is an ISO 4217 code supported by the bank.
type Currency string

const (
	GBP Currency = "GBP"
	EUR Currency = "EUR"
	USD Currency = "USD"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountActive AccountStatus = "active"
	AccountFrozen AccountStatus = "frozen"
	AccountClosed AccountStatus = "closed"
)

// CanTransitionTo reports whether an account may move from s to next.
// Closed is terminal.
func (s AccountStatus) CanTransitionTo(next AccountStatus) bool {
	switch s {
	case AccountActive:
		return next == AccountFrozen || next == AccountClosed
	case AccountFrozen:
		return next == AccountActive || next == AccountClosed
	default:
		return false
	}
}

// AccountIdentifiers are the bank identifiers allocated for a new account.
type AccountIdentifiers struct {
	AccountNumber string  `json:"account_number"`
	SortCode      *string `json:"sort_code,omitempty"`
	IBAN          *string `json:"iban,omitempty"`
	RoutingNumber *string `json:"routing_number,omitempty"`
	SwiftBIC      string  `json:"swift_bic"`
}

// Account represents a customer account.
type Account struct {
	ID       uuid.UUID   `json:"id"`
	UserID   uuid.UUID   `json:"user_id"`
	Type     AccountType `json:"account_type"`
	Currency Currency    `json:"currency"`
	AccountIdentifiers
	Balance      int64         `json:"balance"`
	Status       AccountStatus `json:"status"`
	StatusReason *string       `json:"status_reason,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
