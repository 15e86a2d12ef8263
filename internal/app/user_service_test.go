package app

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"testing"

	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/hometown/backoffice-service/internal/idgen"
	"github.com/hometown/backoffice-service/internal/store"
	"golang.org/x/crypto/bcrypt"
)

func newTestUserService(t *testing.T, repo *repoStub, publisher EventPublisher) *UserService {
	t.Helper()
	gen := testGenerator(t)
	accounts := NewAccountService(repo, gen, publisher, testLogger(), testConfig())
	svc := NewUserService(repo, accounts, gen, publisher, testLogger())
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func validUserInput() CreateUserInput {
	return CreateUserInput{
		Email:     " Ada.Lovelace@Example.com ",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Password:  "correct horse",
		Currency:  "gbp",
	}
}

func TestCreateUser_CreatesUserAndPrimaryAccount(t *testing.T) {
	repo := newRepoStub()
	publisher := &publisherStub{}
	svc := newTestUserService(t, repo, publisher)

	created, err := svc.CreateUser(context.Background(), validUserInput())
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	if !regexp.MustCompile(`^[1-9]\d{11}$`).MatchString(created.User.MembershipNumber) {
		t.Fatalf("unexpected membership number %q", created.User.MembershipNumber)
	}
	if created.User.Email != "ada.lovelace@example.com" {
		t.Fatalf("expected normalised email, got %q", created.User.Email)
	}
	if bcrypt.CompareHashAndPassword([]byte(created.User.PasswordHash), []byte("correct horse")) != nil {
		t.Fatal("expected password hash to match the password")
	}
	if created.Account.UserID != created.User.ID || created.Account.Currency != domain.GBP || created.Account.SortCode == nil {
		t.Fatalf("unexpected primary account %+v", created.Account)
	}
	if len(repo.users) != 1 || len(repo.accounts) != 1 {
		t.Fatalf("expected one user and one account, got %d and %d", len(repo.users), len(repo.accounts))
	}
	if want := []string{RoutingKeyUserCreated, RoutingKeyAccountOpened}; !slices.Equal(publisher.routingKeys(), want) {
		t.Fatalf("expected events %v, got %v", want, publisher.routingKeys())
	}
}

func TestCreateUser_ValidatesInput(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateUserInput)
		wantErr error
	}{
		{name: "bad email", mutate: func(in *CreateUserInput) { in.Email = "not-an-email" }, wantErr: ErrInvalidInput},
		{name: "missing name", mutate: func(in *CreateUserInput) { in.LastName = "  " }, wantErr: ErrInvalidInput},
		{name: "short password", mutate: func(in *CreateUserInput) { in.Password = "short" }, wantErr: ErrInvalidInput},
		{name: "unsupported currency", mutate: func(in *CreateUserInput) { in.Currency = "CHF" }, wantErr: idgen.ErrInvalidCountryProfile},
		{name: "unknown account type", mutate: func(in *CreateUserInput) { in.AccountType = "loan" }, wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepoStub()
			svc := newTestUserService(t, repo, nil)
			input := validUserInput()
			tt.mutate(&input)

			if _, err := svc.CreateUser(context.Background(), input); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(repo.users) != 0 {
				t.Fatal("expected no user to be stored")
			}
		})
	}
}

func TestCreateUser_AccountAllocationFailureRollsBackUser(t *testing.T) {
	repo := newRepoStub()
	repo.exhausted[idgen.SortCodeField] = true
	publisher := &publisherStub{}
	svc := newTestUserService(t, repo, publisher)

	_, err := svc.CreateUser(context.Background(), validUserInput())
	if !errors.Is(err, ErrIdentifierAllocation) {
		t.Fatalf("expected ErrIdentifierAllocation, got %v", err)
	}
	if errors.Is(err, idgen.ErrGenerationExhausted) {
		t.Fatal("expected exhaustion details to stay out of the returned error")
	}
	if len(repo.users) != 0 || len(repo.accounts) != 0 {
		t.Fatalf("expected rollback, got %d users and %d accounts", len(repo.users), len(repo.accounts))
	}
	if len(publisher.events) != 0 {
		t.Fatalf("expected no events, got %v", publisher.routingKeys())
	}
}

func TestCreateUser_MembershipExhaustion(t *testing.T) {
	repo := newRepoStub()
	repo.exhausted[idgen.MembershipNumberField] = true
	svc := newTestUserService(t, repo, nil)

	if _, err := svc.CreateUser(context.Background(), validUserInput()); !errors.Is(err, ErrIdentifierAllocation) {
		t.Fatalf("expected ErrIdentifierAllocation, got %v", err)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	repo := newRepoStub()
	svc := newTestUserService(t, repo, nil)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, validUserInput()); err != nil {
		t.Fatalf("first CreateUser returned error: %v", err)
	}
	if _, err := svc.CreateUser(ctx, validUserInput()); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if len(repo.users) != 1 || len(repo.accounts) != 1 {
		t.Fatalf("expected the first user only, got %d users and %d accounts", len(repo.users), len(repo.accounts))
	}
}

func TestCreateUser_PublishFailureDoesNotFail(t *testing.T) {
	repo := newRepoStub()
	publisher := &publisherStub{err: errors.New("broker down")}
	svc := newTestUserService(t, repo, publisher)

	if _, err := svc.CreateUser(context.Background(), validUserInput()); err != nil {
		t.Fatalf("expected publish errors to be logged only, got %v", err)
	}
	if len(repo.users) != 1 {
		t.Fatal("expected user to stay committed")
	}
}
