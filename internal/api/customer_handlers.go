package api

import (
	"log/slog"
	"net/http"

	"github.com/hometown/backoffice-service/internal/app"
)

// CustomerHandler serves the /me routes. Every route is scoped to the
// authenticated subject.
type CustomerHandler struct {
	services Services
	logger   *slog.Logger
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(services Services, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{services: services, logger: logger}
}

// ListAccounts returns the caller's accounts.
func (h *CustomerHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	accounts, err := h.services.Accounts.ListAccountsByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, h.logger, "list_accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// ListTransactions returns the newest ledger entries of one of the caller's accounts.
func (h *CustomerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	accountID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	limit, ok := listLimit(w, r)
	if !ok {
		return
	}

	if _, err := h.services.Accounts.GetOwnedAccount(r.Context(), userID, accountID); err != nil {
		handleServiceError(w, h.logger, "list_transactions", err)
		return
	}
	txns, err := h.services.Transactions.ListTransactions(r.Context(), accountID, limit)
	if err != nil {
		handleServiceError(w, h.logger, "list_transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

// SubmitDepositRequest defines the expected JSON body for a check deposit.
type SubmitDepositRequest struct {
	Amount      int64  `json:"amount"`
	CheckNumber string `json:"check_number"`
	ImageRef    string `json:"image_ref"`
}

// SubmitDeposit records a check deposit for admin review.
func (h *CustomerHandler) SubmitDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	accountID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req SubmitDepositRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	deposit, err := h.services.Deposits.SubmitCheckDeposit(r.Context(), app.SubmitDepositInput{
		OwnerID:     userID,
		AccountID:   accountID,
		Amount:      req.Amount,
		CheckNumber: req.CheckNumber,
		ImageRef:    req.ImageRef,
	})
	if err != nil {
		handleServiceError(w, h.logger, "submit_deposit", err)
		return
	}
	writeJSON(w, http.StatusAccepted, deposit)
}

// ListCards returns the masked cards of one of the caller's accounts.
func (h *CustomerHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	accountID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.services.Accounts.GetOwnedAccount(r.Context(), userID, accountID); err != nil {
		handleServiceError(w, h.logger, "list_cards", err)
		return
	}
	cards, err := h.services.Cards.ListCardsByAccount(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, h.logger, "list_cards", err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// SetPINRequest defines the body for the first PIN of a card.
type SetPINRequest struct {
	PIN string `json:"pin"`
}

// SetPIN sets the first PIN of a card and activates it.
func (h *CustomerHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	cardID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req SetPINRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	card, err := h.services.Cards.SetPIN(r.Context(), userID, cardID, req.PIN)
	if err != nil {
		handleServiceError(w, h.logger, "set_pin", err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// ChangePINRequest defines the body for a PIN change.
type ChangePINRequest struct {
	CurrentPIN string `json:"current_pin"`
	NewPIN     string `json:"new_pin"`
}

// ChangePIN replaces the PIN of an active card after verifying the current one.
func (h *CustomerHandler) ChangePIN(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	cardID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req ChangePINRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.services.Cards.ChangePIN(r.Context(), userID, cardID, req.CurrentPIN, req.NewPIN); err != nil {
		handleServiceError(w, h.logger, "change_pin", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
