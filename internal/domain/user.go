/**
 * @description
 * This file defines the domain model for a back-office User (a bank customer).
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a bank customer.
type User struct {
	ID               uuid.UUID `json:"id"`
	MembershipNumber string    `json:"membership_number"`
	Email            string    `json:"email"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	PasswordHash     string    `json:"-"`

	// USRoutingNumber is shared by every USD account the user holds.
	USRoutingNumber *string   `json:"us_routing_number,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
