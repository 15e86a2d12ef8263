package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/hometown/backoffice-service/internal/idgen"
	"github.com/hometown/backoffice-service/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// UserService provisions bank customers.
type UserService struct {
	repo       store.Repository
	accounts   *AccountService
	gen        *idgen.Generator
	publisher  EventPublisher
	logger     *slog.Logger
	bcryptCost int
}

// NewUserService creates a new instance of UserService.
func NewUserService(repo store.Repository, accounts *AccountService, gen *idgen.Generator, publisher EventPublisher, logger *slog.Logger) *UserService {
	return &UserService{
		repo:       repo,
		accounts:   accounts,
		gen:        gen,
		publisher:  publisher,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// CreateUserInput defines the required input for creating a user.
type CreateUserInput struct {
	Email       string
	FirstName   string
	LastName    string
	Password    string
	Currency    domain.Currency
	AccountType domain.AccountType
}

// CreatedUser is a new user together with their primary account.
type CreatedUser struct {
	User    *domain.User    `json:"user"`
	Account *domain.Account `json:"account"`
}

// CreateUser allocates a membership number, stores the user and opens their
// primary account in one transaction.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*CreatedUser, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(input.Email))
	if err != nil {
		return nil, invalidInput("email is not valid")
	}
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	if firstName == "" || lastName == "" {
		return nil, invalidInput("first and last name are required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, invalidInput("password must be at least %d characters", minPasswordLength)
	}
	currency := domain.Currency(strings.ToUpper(string(input.Currency)))
	if _, err := idgen.ProfileForCurrency(string(currency)); err != nil {
		return nil, err
	}
	accountType := input.AccountType
	if accountType == "" {
		accountType = domain.CurrentAccount
	}
	if !accountType.Valid() {
		return nil, invalidInput("unknown account type %q", accountType)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("could not hash password: %w", err)
	}

	created := &CreatedUser{}
	err = s.repo.WithTx(ctx, func(tx store.Repository) error {
		membership, err := s.gen.UniqueMembershipNumber(ctx, tx)
		if err != nil {
			return err
		}
		user := &domain.User{
			MembershipNumber: membership,
			Email:            strings.ToLower(addr.Address),
			FirstName:        firstName,
			LastName:         lastName,
			PasswordHash:     string(hash),
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("could not create user: %w", err)
		}
		account, err := s.accounts.openInTx(ctx, tx, user, currency, accountType)
		if err != nil {
			return err
		}
		created.User, created.Account = user, account
		return nil
	})
	if err != nil {
		return nil, allocationFailure(s.logger, "create user", err)
	}

	s.logger.Info("user created", "user_id", created.User.ID, "account_id", created.Account.ID)
	publish(ctx, s.publisher, s.logger, RoutingKeyUserCreated, domain.UserCreatedEvent{
		UserID:           created.User.ID,
		MembershipNumber: created.User.MembershipNumber,
		Email:            created.User.Email,
	})
	publish(ctx, s.publisher, s.logger, RoutingKeyAccountOpened, domain.AccountOpenedEvent{
		AccountID:     created.Account.ID,
		UserID:        created.User.ID,
		Currency:      created.Account.Currency,
		AccountNumber: created.Account.AccountNumber,
	})
	return created, nil
}

// GetUser returns a single user.
func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.repo.FindUserByID(ctx, userID)
}

// ListUsers returns a page of users ordered by creation time.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	if offset < 0 {
		return nil, invalidInput("offset must not be negative")
	}
	return s.repo.ListUsers(ctx, limit, offset)
}
