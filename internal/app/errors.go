package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hometown/backoffice-service/internal/idgen"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrAccountNotActive     = errors.New("account is not active")
	ErrBalanceNotZero       = errors.New("account balance must be zero")
	ErrCardNotActive        = errors.New("card is not active")
	ErrCardLocked           = errors.New("card locked after too many failed PIN attempts")
	ErrIncorrectPIN         = errors.New("incorrect PIN")
	ErrIdentifierAllocation = errors.New("could not allocate identifier")
	ErrForbidden            = errors.New("forbidden")
)

const (
	// BackofficeExchange receives every event this service publishes.
	BackofficeExchange = "backoffice_events"

	RoutingKeyUserCreated          = "user.created"
	RoutingKeyAccountOpened        = "account.opened"
	RoutingKeyAccountStatusChanged = "account.status_changed"
	RoutingKeyDepositApproved      = "deposit.approved"
	RoutingKeyDepositRejected      = "deposit.rejected"
)

// EventPublisher is satisfied by the RabbitMQ producer.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// allocationFailure keeps identifier exhaustion details in the log and hands
// callers the generic ErrIdentifierAllocation.
func allocationFailure(logger *slog.Logger, op string, err error) error {
	var exhausted *idgen.ExhaustedError
	if errors.As(err, &exhausted) {
		logger.Error("identifier allocation failed", "op", op, "field", exhausted.Field.String(), "attempts", exhausted.Attempts)
		return fmt.Errorf("%w: %s", ErrIdentifierAllocation, op)
	}
	return err
}

// publish sends an event after commit. Delivery failures are logged only;
// the committed state stays authoritative.
func publish(ctx context.Context, publisher EventPublisher, logger *slog.Logger, routingKey string, body interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, BackofficeExchange, routingKey, body); err != nil {
		logger.Warn("failed to publish event", "routing_key", routingKey, "error", err)
	}
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
