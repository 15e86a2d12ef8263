/**
 * @description
 * This file contains the account logic of the back office, implemented as an
 * `AccountService`. Opening an account allocates its bank identifiers through
 * the identifier generator inside the same database transaction as the insert,
 * so an exhausted allocation leaves nothing behind.
 *
 * @notes
 * - GBP accounts get a sort code and a GB IBAN, EUR accounts a DE IBAN only and
 *   USD accounts a routing number plus a US pseudo-IBAN.
 * - A user holds one routing number; every later USD account reuses it.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hometown/backoffice-service/internal/config"
	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/hometown/backoffice-service/internal/idgen"
	"github.com/hometown/backoffice-service/internal/store"
)

// AccountService provides methods for opening and maintaining accounts.
type AccountService struct {
	repo      store.Repository
	gen       *idgen.Generator
	publisher EventPublisher
	logger    *slog.Logger
	config    config.Config
}

// NewAccountService creates a new instance of AccountService.
func NewAccountService(repo store.Repository, gen *idgen.Generator, publisher EventPublisher, logger *slog.Logger, cfg config.Config) *AccountService {
	return &AccountService{
		repo:      repo,
		gen:       gen,
		publisher: publisher,
		logger:    logger,
		config:    cfg,
	}
}

// OpenAccountInput defines the input for opening an account.
type OpenAccountInput struct {
	UserID   uuid.UUID
	Currency domain.Currency
	Type     domain.AccountType
}

// OpenAccount allocates identifiers for and inserts a new account.
func (s *AccountService) OpenAccount(ctx context.Context, input OpenAccountInput) (*domain.Account, error) {
	if input.Type == "" {
		input.Type = domain.CurrentAccount
	}
	if !input.Type.Valid() {
		return nil, invalidInput("unknown account type %q", input.Type)
	}
	currency := domain.Currency(strings.ToUpper(string(input.Currency)))
	if _, err := idgen.ProfileForCurrency(string(currency)); err != nil {
		return nil, err
	}

	var account *domain.Account
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		// Lock the user so concurrent USD opens agree on one routing number.
		user, err := tx.FindUserForUpdate(ctx, input.UserID)
		if err != nil {
			return err
		}
		account, err = s.openInTx(ctx, tx, user, currency, input.Type)
		return err
	})
	if err != nil {
		return nil, allocationFailure(s.logger, "open account", err)
	}

	s.logger.Info("account opened", "account_id", account.ID, "user_id", account.UserID, "currency", account.Currency)
	publish(ctx, s.publisher, s.logger, RoutingKeyAccountOpened, domain.AccountOpenedEvent{
		AccountID:     account.ID,
		UserID:        account.UserID,
		Currency:      account.Currency,
		AccountNumber: account.AccountNumber,
	})
	return account, nil
}

// openInTx allocates identifiers and inserts the account through tx. The
// caller owns the transaction.
func (s *AccountService) openInTx(ctx context.Context, tx store.Repository, user *domain.User, currency domain.Currency, accountType domain.AccountType) (*domain.Account, error) {
	ids, err := s.allocateIdentifiers(ctx, tx, user, currency)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		UserID:             user.ID,
		Type:               accountType,
		Currency:           currency,
		AccountIdentifiers: ids,
		Status:             domain.AccountActive,
	}
	if err := tx.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("could not create account: %w", err)
	}
	return account, nil
}

func (s *AccountService) allocateIdentifiers(ctx context.Context, tx store.Repository, user *domain.User, currency domain.Currency) (domain.AccountIdentifiers, error) {
	profile, err := idgen.ProfileForCurrency(string(currency))
	if err != nil {
		return domain.AccountIdentifiers{}, err
	}

	accountNumber, err := s.gen.UniqueAccountNumber(ctx, tx)
	if err != nil {
		return domain.AccountIdentifiers{}, err
	}
	ids := domain.AccountIdentifiers{AccountNumber: accountNumber}
	segment := idgen.AccountSegment(accountNumber, profile.AccountLength)

	switch currency {
	case domain.GBP:
		sortCode, err := s.gen.UniqueSortCode(ctx, tx)
		if err != nil {
			return domain.AccountIdentifiers{}, err
		}
		iban, err := s.gen.UniqueIBAN(ctx, tx, profile, idgen.BBAN{BankCode: s.config.BankCodeGB, Branch: sortCode, Account: segment})
		if err != nil {
			return domain.AccountIdentifiers{}, err
		}
		ids.SortCode = &sortCode
		ids.IBAN = &iban
		ids.SwiftBIC = s.config.SwiftBICGBP

	case domain.EUR:
		iban, err := s.gen.UniqueIBAN(ctx, tx, profile, idgen.BBAN{BankCode: s.config.BankCodeDE, Account: segment})
		if err != nil {
			return domain.AccountIdentifiers{}, err
		}
		ids.IBAN = &iban
		ids.SwiftBIC = s.config.SwiftBICEUR

	case domain.USD:
		var routing, iban string
		if user.USRoutingNumber != nil {
			routing = *user.USRoutingNumber
			iban, err = s.gen.UniqueIBAN(ctx, tx, profile, idgen.BBAN{BankCode: routing, Account: segment})
			if err != nil {
				return domain.AccountIdentifiers{}, err
			}
		} else {
			us, err := s.gen.UniqueUSRoutingAndIBAN(ctx, tx, accountNumber)
			if err != nil {
				return domain.AccountIdentifiers{}, err
			}
			if err := tx.SetUserRoutingNumber(ctx, user.ID, us.RoutingNumber); err != nil {
				return domain.AccountIdentifiers{}, fmt.Errorf("could not store routing number: %w", err)
			}
			routing, iban = us.RoutingNumber, us.IBAN
			user.USRoutingNumber = &routing
		}
		ids.RoutingNumber = &routing
		ids.IBAN = &iban
		ids.SwiftBIC = s.config.SwiftBICUSD
	}

	return ids, nil
}

// GetAccount returns a single account.
func (s *AccountService) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	return s.repo.FindAccountByID(ctx, accountID)
}

// GetOwnedAccount returns the account only when it belongs to userID.
func (s *AccountService) GetOwnedAccount(ctx context.Context, userID, accountID uuid.UUID) (*domain.Account, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, ErrForbidden
	}
	return account, nil
}

// ListAccountsByUser returns every account held by a user.
func (s *AccountService) ListAccountsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	return s.repo.ListAccountsByUserID(ctx, userID)
}

// ChangeAccountStatus moves an account through active, frozen and closed.
// Closing requires a zero balance.
func (s *AccountService) ChangeAccountStatus(ctx context.Context, accountID uuid.UUID, next domain.AccountStatus, reason string) (*domain.Account, error) {
	reason = strings.TrimSpace(reason)
	var (
		account  *domain.Account
		previous domain.AccountStatus
	)
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		var err error
		account, err = tx.FindAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if !account.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: account %s -> %s", ErrInvalidTransition, account.Status, next)
		}
		if next == domain.AccountClosed && account.Balance != 0 {
			return ErrBalanceNotZero
		}
		if err := tx.UpdateAccountStatus(ctx, accountID, next, stringPtr(reason)); err != nil {
			return err
		}
		previous = account.Status
		account.Status = next
		account.StatusReason = stringPtr(reason)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account status changed", "account_id", accountID, "from", previous, "to", next)
	publish(ctx, s.publisher, s.logger, RoutingKeyAccountStatusChanged, domain.AccountStatusChangedEvent{
		AccountID: accountID,
		From:      previous,
		To:        next,
		Reason:    reason,
	})
	return account, nil
}

// AdjustmentDirection says whether an adjustment adds or removes funds.
type AdjustmentDirection string

const (
	Credit AdjustmentDirection = "credit"
	Debit  AdjustmentDirection = "debit"
)

// AdjustFundsInput defines a manual balance adjustment made by an admin.
type AdjustFundsInput struct {
	AccountID uuid.UUID
	Amount    int64
	Direction AdjustmentDirection
	Reason    string
	AdminID   string
}

// AdjustFunds credits or debits an active account and records a completed
// adjustment in the ledger.
func (s *AccountService) AdjustFunds(ctx context.Context, input AdjustFundsInput) (*domain.Transaction, error) {
	if input.Amount <= 0 {
		return nil, invalidInput("amount must be positive")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, invalidInput("reason is required")
	}

	var delta int64
	switch input.Direction {
	case Credit:
		delta = input.Amount
	case Debit:
		delta = -input.Amount
	default:
		return nil, invalidInput("direction must be credit or debit")
	}

	var txn *domain.Transaction
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		account, err := tx.FindAccountForUpdate(ctx, input.AccountID)
		if err != nil {
			return err
		}
		if account.Status != domain.AccountActive {
			return ErrAccountNotActive
		}
		if _, err := tx.ApplyBalanceChange(ctx, input.AccountID, delta); err != nil {
			return err
		}
		txn = &domain.Transaction{
			AccountID:   input.AccountID,
			Type:        domain.TransactionAdjustment,
			Status:      domain.TransactionCompleted,
			Amount:      delta,
			Description: reason,
			CreatedBy:   stringPtr(input.AdminID),
		}
		return tx.CreateTransaction(ctx, txn)
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			s.logger.Info("adjustment rejected", "account_id", input.AccountID, "amount", delta, "error", err)
		}
		return nil, err
	}

	s.logger.Info("funds adjusted", "account_id", input.AccountID, "amount", delta, "admin_id", input.AdminID)
	return txn, nil
}
