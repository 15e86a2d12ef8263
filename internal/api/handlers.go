/**
 * @description
 * Shared plumbing for the back-office HTTP handlers: the service interfaces the
 * handlers depend on, JSON request/response helpers, and the single mapping
 * from service errors to HTTP status codes.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: URL parameter handling.
 * - github.com/google/uuid: Path and subject parsing.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hometown/backoffice-service/internal/app"
	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/hometown/backoffice-service/internal/idgen"
	"github.com/hometown/backoffice-service/internal/store"
	"github.com/hometown/backoffice-service/pkg/middleware"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxBodyBytes     = 1 << 20
)

// UserService is the user management surface used by the admin handlers.
type UserService interface {
	CreateUser(ctx context.Context, input app.CreateUserInput) (*app.CreatedUser, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
}

// AccountService is the account surface used by admin and customer handlers.
type AccountService interface {
	OpenAccount(ctx context.Context, input app.OpenAccountInput) (*domain.Account, error)
	GetOwnedAccount(ctx context.Context, userID, accountID uuid.UUID) (*domain.Account, error)
	ListAccountsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Account, error)
	ChangeAccountStatus(ctx context.Context, accountID uuid.UUID, next domain.AccountStatus, reason string) (*domain.Account, error)
	AdjustFunds(ctx context.Context, input app.AdjustFundsInput) (*domain.Transaction, error)
}

// CardService is the card surface used by admin and customer handlers.
type CardService interface {
	IssueCard(ctx context.Context, input app.IssueCardInput) (*domain.IssuedCard, error)
	ListCardsByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Card, error)
	SetPIN(ctx context.Context, ownerID, cardID uuid.UUID, pin string) (*domain.Card, error)
	ChangePIN(ctx context.Context, ownerID, cardID uuid.UUID, oldPIN, newPIN string) error
	SetCardStatus(ctx context.Context, cardID uuid.UUID, next domain.CardStatus) (*domain.Card, error)
}

// DepositService is the check deposit surface.
type DepositService interface {
	SubmitCheckDeposit(ctx context.Context, input app.SubmitDepositInput) (*domain.CheckDeposit, error)
	ApproveDeposit(ctx context.Context, depositID uuid.UUID, adminID string) (*domain.CheckDeposit, error)
	RejectDeposit(ctx context.Context, depositID uuid.UUID, adminID, reason string) (*domain.CheckDeposit, error)
	ListPendingDeposits(ctx context.Context, limit int) ([]domain.CheckDeposit, error)
}

// TransactionService is the ledger surface.
type TransactionService interface {
	UpdateStatus(ctx context.Context, transactionID uuid.UUID, next domain.TransactionStatus, reason string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error)
}

// Services bundles everything the router needs.
type Services struct {
	Users        UserService
	Accounts     AccountService
	Cards        CardService
	Deposits     DepositService
	Transactions TransactionService
}

// statusForError maps a service error to an HTTP status and a client-safe message.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, idgen.ErrInvalidCountryProfile):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrCardNotFound),
		errors.Is(err, store.ErrDepositNotFound),
		errors.Is(err, store.ErrTransactionNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, store.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "Insufficient funds"
	case errors.Is(err, app.ErrCardLocked):
		return http.StatusLocked, "Card is locked after too many failed PIN attempts"
	case errors.Is(err, app.ErrIncorrectPIN):
		return http.StatusUnauthorized, "Invalid PIN"
	case errors.Is(err, app.ErrInvalidTransition),
		errors.Is(err, app.ErrAccountNotActive),
		errors.Is(err, app.ErrBalanceNotZero),
		errors.Is(err, app.ErrCardNotActive),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, err.Error()
	case errors.Is(err, app.ErrIdentifierAllocation):
		return http.StatusServiceUnavailable, app.ErrIdentifierAllocation.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func handleServiceError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status, message := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "op", op, "status", status, "error", err)
	}
	writeError(w, status, message)
}

// writeJSON is a helper to write JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// currentUserID returns the authenticated subject as a UUID.
func currentUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func listLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return 0, false
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, true
}
