/**
 * @description
 * This file defines the event handler that processes `customer.registered`
 * messages from the RabbitMQ queue and provisions a primary account for the
 * registered user.
 *
 * @notes
 * - The handler returns true to ack and false to nack/requeue. Malformed
 *   payloads and permanent failures are acked so they are not redelivered.
 * - Provisioning is skipped when the user already holds an account, which
 *   makes redelivery harmless.
 */
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/hometown/backoffice-service/internal/idgen"
	"github.com/hometown/backoffice-service/internal/store"
)

// CustomerEventHandler handles processing of customer events.
type CustomerEventHandler struct {
	accounts *AccountService
	repo     store.AccountRepository
	logger   *slog.Logger
}

// NewCustomerEventHandler creates a new instance of CustomerEventHandler.
func NewCustomerEventHandler(accounts *AccountService, repo store.AccountRepository, logger *slog.Logger) *CustomerEventHandler {
	return &CustomerEventHandler{
		accounts: accounts,
		repo:     repo,
		logger:   logger,
	}
}

// HandleCustomerRegisteredEvent is the callback that processes a
// `customer.registered` event.
func (h *CustomerEventHandler) HandleCustomerRegisteredEvent(body []byte) bool {
	var event domain.CustomerRegisteredEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("failed to unmarshal customer.registered event", "error", err)
		return true // Acknowledge message, as it's malformed and cannot be retried.
	}

	userID, err := uuid.Parse(strings.TrimSpace(event.UserID))
	if err != nil {
		h.logger.Error("customer.registered event has an invalid user id", "user_id", event.UserID)
		return true
	}
	currency := domain.Currency(strings.ToUpper(strings.TrimSpace(event.Currency)))
	if currency == "" {
		currency = domain.GBP
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	existing, err := h.repo.ListAccountsByUserID(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list accounts for registered customer", "user_id", userID, "error", err)
		return false
	}
	if len(existing) > 0 {
		h.logger.Info("customer already has an account, skipping provisioning", "user_id", userID)
		return true
	}

	account, err := h.accounts.OpenAccount(ctx, OpenAccountInput{
		UserID:   userID,
		Currency: currency,
		Type:     domain.CurrentAccount,
	})
	switch {
	case err == nil:
		h.logger.Info("primary account provisioned", "user_id", userID, "account_id", account.ID)
		return true
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, idgen.ErrInvalidCountryProfile),
		errors.Is(err, ErrIdentifierAllocation):
		h.logger.Error("cannot provision account for registered customer", "user_id", userID, "currency", currency, "error", err)
		return true
	default:
		h.logger.Error("failed to provision account, will retry", "user_id", userID, "error", err)
		return false
	}
}
