/**
 * @description
 * This file defines the event payloads exchanged over RabbitMQ. Inbound events
 * are consumed from the customer_events exchange; outbound events are
 * published to the backoffice_events exchange.
 */
package domain

import "github.com/google/uuid"

// CustomerRegisteredEvent asks for a primary account to be provisioned for an
// existing user.
type CustomerRegisteredEvent struct {
	UserID   string `json:"user_id"`
	Currency string `json:"currency"`
}

// UserCreatedEvent is published once a user and their first account commit.
type UserCreatedEvent struct {
	UserID           uuid.UUID `json:"user_id"`
	MembershipNumber string    `json:"membership_number"`
	Email            string    `json:"email"`
}

// AccountOpenedEvent is published when a new account commits.
type AccountOpenedEvent struct {
	AccountID     uuid.UUID `json:"account_id"`
	UserID        uuid.UUID `json:"user_id"`
	Currency      Currency  `json:"currency"`
	AccountNumber string    `json:"account_number"`
}

// AccountStatusChangedEvent is published after an account status change.
type AccountStatusChangedEvent struct {
	AccountID uuid.UUID     `json:"account_id"`
	From      AccountStatus `json:"from"`
	To        AccountStatus `json:"to"`
	Reason    string        `json:"reason,omitempty"`
}

// DepositReviewedEvent is published when a check deposit is approved or rejected.
type DepositReviewedEvent struct {
	DepositID uuid.UUID     `json:"deposit_id"`
	AccountID uuid.UUID     `json:"account_id"`
	Amount    int64         `json:"amount"`
	Status    DepositStatus `json:"status"`
}
