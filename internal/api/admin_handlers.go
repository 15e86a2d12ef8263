package api

import (
	"log/slog"
	"net/http"

	"github.com/hometown/backoffice-service/internal/app"
	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/hometown/backoffice-service/pkg/middleware"
)

// AdminHandler serves the back-office routes reserved for staff.
type AdminHandler struct {
	services Services
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(services Services, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{services: services, logger: logger}
}

// CreateUserRequest defines the expected JSON body for creating a user.
type CreateUserRequest struct {
	Email       string             `json:"email"`
	FirstName   string             `json:"first_name"`
	LastName    string             `json:"last_name"`
	Password    string             `json:"password"`
	Currency    domain.Currency    `json:"currency"`
	AccountType domain.AccountType `json:"account_type"`
}

// CreateUser registers a user together with their primary account.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.services.Users.CreateUser(r.Context(), app.CreateUserInput{
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Password:    req.Password,
		Currency:    req.Currency,
		AccountType: req.AccountType,
	})
	if err != nil {
		handleServiceError(w, h.logger, "create_user", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListUsers returns a page of users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, ok := listLimit(w, r)
	if !ok {
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	users, err := h.services.Users.ListUsers(r.Context(), limit, offset)
	if err != nil {
		handleServiceError(w, h.logger, "list_users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUser returns a user and their accounts.
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	user, err := h.services.Users.GetUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, h.logger, "get_user", err)
		return
	}
	accounts, err := h.services.Accounts.ListAccountsByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, h.logger, "get_user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user, "accounts": accounts})
}

// OpenAccountRequest defines the expected JSON body for opening an account.
type OpenAccountRequest struct {
	Currency    domain.Currency    `json:"currency"`
	AccountType domain.AccountType `json:"account_type"`
}

// OpenAccount opens an additional account for an existing user.
func (h *AdminHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req OpenAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.services.Accounts.OpenAccount(r.Context(), app.OpenAccountInput{
		UserID:   userID,
		Currency: req.Currency,
		Type:     req.AccountType,
	})
	if err != nil {
		handleServiceError(w, h.logger, "open_account", err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// StatusRequest is the body shared by the status-change routes.
type StatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// ChangeAccountStatus freezes, unfreezes or closes an account.
func (h *AdminHandler) ChangeAccountStatus(w http.ResponseWriter, r *http.Request) {
	accountID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.services.Accounts.ChangeAccountStatus(r.Context(), accountID, domain.AccountStatus(req.Status), req.Reason)
	if err != nil {
		handleServiceError(w, h.logger, "change_account_status", err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// AdjustmentRequest defines a manual credit or debit.
type AdjustmentRequest struct {
	Amount    int64                   `json:"amount"`
	Direction app.AdjustmentDirection `json:"direction"`
	Reason    string                  `json:"reason"`
}

// AdjustFunds applies a manual balance adjustment.
func (h *AdminHandler) AdjustFunds(w http.ResponseWriter, r *http.Request) {
	accountID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req AdjustmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	txn, err := h.services.Accounts.AdjustFunds(r.Context(), app.AdjustFundsInput{
		AccountID: accountID,
		Amount:    req.Amount,
		Direction: req.Direction,
		Reason:    req.Reason,
		AdminID:   middleware.GetUserIDFromContext(r.Context()),
	})
	if err != nil {
		handleServiceError(w, h.logger, "adjust_funds", err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

// IssueCardRequest defines the expected JSON body for issuing a card.
type IssueCardRequest struct {
	CardholderName string `json:"cardholder_name"`
}

// IssueCard issues a new inactive card. The full number and CVV are only
// returned in this response.
func (h *AdminHandler) IssueCard(w http.ResponseWriter, r *http.Request) {
	accountID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req IssueCardRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	issued, err := h.services.Cards.IssueCard(r.Context(), app.IssueCardInput{
		AccountID:      accountID,
		CardholderName: req.CardholderName,
	})
	if err != nil {
		handleServiceError(w, h.logger, "issue_card", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, issued)
}

// SetCardStatus activates, blocks or cancels a card.
func (h *AdminHandler) SetCardStatus(w http.ResponseWriter, r *http.Request) {
	cardID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	card, err := h.services.Cards.SetCardStatus(r.Context(), cardID, domain.CardStatus(req.Status))
	if err != nil {
		handleServiceError(w, h.logger, "set_card_status", err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// ListPendingDeposits returns deposits awaiting review, oldest first.
func (h *AdminHandler) ListPendingDeposits(w http.ResponseWriter, r *http.Request) {
	limit, ok := listLimit(w, r)
	if !ok {
		return
	}

	deposits, err := h.services.Deposits.ListPendingDeposits(r.Context(), limit)
	if err != nil {
		handleServiceError(w, h.logger, "list_pending_deposits", err)
		return
	}
	writeJSON(w, http.StatusOK, deposits)
}

// ApproveDeposit credits the account for a pending deposit.
func (h *AdminHandler) ApproveDeposit(w http.ResponseWriter, r *http.Request) {
	depositID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	deposit, err := h.services.Deposits.ApproveDeposit(r.Context(), depositID, middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, "approve_deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, deposit)
}

// RejectDepositRequest carries the reason shown to the customer.
type RejectDepositRequest struct {
	Reason string `json:"reason"`
}

// RejectDeposit rejects a pending deposit.
func (h *AdminHandler) RejectDeposit(w http.ResponseWriter, r *http.Request) {
	depositID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req RejectDepositRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	deposit, err := h.services.Deposits.RejectDeposit(r.Context(), depositID, middleware.GetUserIDFromContext(r.Context()), req.Reason)
	if err != nil {
		handleServiceError(w, h.logger, "reject_deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, deposit)
}

// UpdateTransactionStatus moves a ledger entry to a new status.
func (h *AdminHandler) UpdateTransactionStatus(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	txn, err := h.services.Transactions.UpdateStatus(r.Context(), transactionID, domain.TransactionStatus(req.Status), req.Reason)
	if err != nil {
		handleServiceError(w, h.logger, "update_transaction_status", err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}
