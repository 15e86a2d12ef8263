package domain

import (
	"time"

	"github.com/google/uuid"
)

// DepositStatus is the review state of a check deposit.
type DepositStatus string

const (
	DepositPending  DepositStatus = "pending"
	DepositApproved DepositStatus = "approved"
	DepositRejected DepositStatus = "rejected"
)

// CheckDeposit is a customer-submitted check awaiting admin review.
type CheckDeposit struct {
	ID            uuid.UUID `json:"id"`
	AccountID     uuid.UUID `json:"account_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	CheckNumber   string    `json:"check_number"`

	// ImageRef points into object storage; the image itself is not handled here.
	ImageRef        string        `json:"image_ref"`
	Status          DepositStatus `json:"status"`
	ReviewedBy      *string       `json:"reviewed_by,omitempty"`
	RejectionReason *string       `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
}
