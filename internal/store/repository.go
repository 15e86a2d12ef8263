/**
 * @description
 * This file defines the interfaces for the data access layer (repositories).
 * Defining interfaces allows for dependency injection and easy mocking in tests,
 * promoting a loosely coupled architecture.
 *
 * @notes
 * - Any component that needs to interact with the database should depend on these
 *   interfaces, not on the concrete PostgreSQL implementation.
 * - Multi-record mutations run through WithTx so that they commit or roll back
 *   as one unit.
 */
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/hometown/backoffice-service/internal/idgen"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrCardNotFound        = errors.New("card not found")
	ErrDepositNotFound     = errors.New("deposit not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrDuplicate           = errors.New("duplicate value")
	ErrUnknownField        = errors.New("unknown identifier field")
)

// Repository is the full data access contract. The Repository handed to a
// WithTx callback runs every call inside the same database transaction.
type Repository interface {
	idgen.Store
	UserRepository
	AccountRepository
	CardRepository
	DepositRepository
	TransactionRepository

	WithTx(ctx context.Context, fn func(Repository) error) error
}

// UserRepository defines the contract for database operations related to users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindUserForUpdate(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
	SetUserRoutingNumber(ctx context.Context, userID uuid.UUID, routingNumber string) error
}

// AccountRepository defines the contract for database operations related to accounts.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	FindAccountForUpdate(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	ListAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error)
	UpdateAccountStatus(ctx context.Context, accountID uuid.UUID, status domain.AccountStatus, reason *string) error
	ApplyBalanceChange(ctx context.Context, accountID uuid.UUID, delta int64) (int64, error)
}

// CardRepository defines the contract for database operations related to cards.
type CardRepository interface {
	CreateCard(ctx context.Context, card *domain.Card) error
	FindCardByID(ctx context.Context, cardID uuid.UUID) (*domain.Card, error)
	ListCardsByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Card, error)
	UpdateCardPIN(ctx context.Context, cardID uuid.UUID, pinHash string, status domain.CardStatus) error
	UpdateCardStatus(ctx context.Context, cardID uuid.UUID, status domain.CardStatus) error
	ExpireCards(ctx context.Context, now time.Time) (int64, error)
}

// DepositRepository defines the contract for check deposit records.
type DepositRepository interface {
	CreateCheckDeposit(ctx context.Context, deposit *domain.CheckDeposit) error
	FindCheckDepositForUpdate(ctx context.Context, depositID uuid.UUID) (*domain.CheckDeposit, error)
	ListPendingDeposits(ctx context.Context, limit int) ([]domain.CheckDeposit, error)
	ListStalePendingDepositIDs(ctx context.Context, submittedBefore time.Time, limit int) ([]uuid.UUID, error)
	MarkDepositReviewed(ctx context.Context, depositID uuid.UUID, status domain.DepositStatus, reviewer string, reason *string) error
}

// TransactionRepository defines the contract for ledger transactions.
type TransactionRepository interface {
	CreateTransaction(ctx context.Context, txn *domain.Transaction) error
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	FindTransactionForUpdate(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, transactionID uuid.UUID, status domain.TransactionStatus, reason *string) error
	ListTransactionsByAccountID(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error)
}
