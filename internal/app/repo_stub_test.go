package app

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hometown/backoffice-service/internal/config"
	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/hometown/backoffice-service/internal/idgen"
	"github.com/hometown/backoffice-service/internal/store"
)

// repoStub is an in-memory store.Repository. WithTx restores the previous
// state when the callback fails.
type repoStub struct {
	store.Repository

	users        map[uuid.UUID]domain.User
	accounts     map[uuid.UUID]domain.Account
	cards        map[uuid.UUID]domain.Card
	deposits     map[uuid.UUID]domain.CheckDeposit
	transactions map[uuid.UUID]domain.Transaction

	exhausted map[idgen.Field]bool
	staleIDs  []uuid.UUID
	listErr   error
	expired   int64
	txCount   int

	userLocks int
	// racedRouting is assigned to the user just before SetUserRoutingNumber,
	// as if a concurrent open had won.
	racedRouting string
}

func newRepoStub() *repoStub {
	return &repoStub{
		users:        map[uuid.UUID]domain.User{},
		accounts:     map[uuid.UUID]domain.Account{},
		cards:        map[uuid.UUID]domain.Card{},
		deposits:     map[uuid.UUID]domain.CheckDeposit{},
		transactions: map[uuid.UUID]domain.Transaction{},
		exhausted:    map[idgen.Field]bool{},
	}
}

func (s *repoStub) WithTx(ctx context.Context, fn func(store.Repository) error) error {
	s.txCount++
	users, accounts, cards := maps.Clone(s.users), maps.Clone(s.accounts), maps.Clone(s.cards)
	deposits, transactions := maps.Clone(s.deposits), maps.Clone(s.transactions)
	if err := fn(s); err != nil {
		s.users, s.accounts, s.cards = users, accounts, cards
		s.deposits, s.transactions = deposits, transactions
		return err
	}
	return nil
}

func (s *repoStub) Exists(ctx context.Context, field idgen.Field, value string) (bool, error) {
	if s.exhausted[field] {
		return true, nil
	}
	switch field {
	case idgen.MembershipNumberField:
		for _, u := range s.users {
			if u.MembershipNumber == value {
				return true, nil
			}
		}
	case idgen.USRoutingNumberField:
		for _, u := range s.users {
			if u.USRoutingNumber != nil && *u.USRoutingNumber == value {
				return true, nil
			}
		}
	case idgen.AccountNumberField, idgen.SortCodeField, idgen.IBANField:
		for _, a := range s.accounts {
			if (field == idgen.AccountNumberField && a.AccountNumber == value) ||
				(field == idgen.SortCodeField && a.SortCode != nil && *a.SortCode == value) ||
				(field == idgen.IBANField && a.IBAN != nil && *a.IBAN == value) {
				return true, nil
			}
		}
	case idgen.CardNumberField:
		for _, c := range s.cards {
			if c.CardNumber == value {
				return true, nil
			}
		}
	default:
		return false, store.ErrUnknownField
	}
	return false, nil
}

func (s *repoStub) CreateUser(ctx context.Context, user *domain.User) error {
	for _, u := range s.users {
		if u.Email == user.Email {
			return store.ErrDuplicate
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	s.users[user.ID] = *user
	return nil
}

func (s *repoStub) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	u, ok := s.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &u, nil
}

func (s *repoStub) FindUserForUpdate(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	s.userLocks++
	return s.FindUserByID(ctx, userID)
}

func (s *repoStub) SetUserRoutingNumber(ctx context.Context, userID uuid.UUID, routingNumber string) error {
	u, ok := s.users[userID]
	if !ok {
		return store.ErrUserNotFound
	}
	if s.racedRouting != "" {
		u.USRoutingNumber = &s.racedRouting
	}
	if u.USRoutingNumber != nil {
		return store.ErrDuplicate
	}
	u.USRoutingNumber = &routingNumber
	s.users[userID] = u
	return nil
}

func (s *repoStub) CreateAccount(ctx context.Context, account *domain.Account) error {
	account.ID = uuid.New()
	account.CreatedAt = time.Now()
	s.accounts[account.ID] = *account
	return nil
}

func (s *repoStub) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return &a, nil
}

func (s *repoStub) FindAccountForUpdate(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	return s.FindAccountByID(ctx, accountID)
}

func (s *repoStub) ListAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *repoStub) UpdateAccountStatus(ctx context.Context, accountID uuid.UUID, status domain.AccountStatus, reason *string) error {
	a, ok := s.accounts[accountID]
	if !ok {
		return store.ErrAccountNotFound
	}
	a.Status, a.StatusReason = status, reason
	s.accounts[accountID] = a
	return nil
}

func (s *repoStub) ApplyBalanceChange(ctx context.Context, accountID uuid.UUID, delta int64) (int64, error) {
	a, ok := s.accounts[accountID]
	if !ok {
		return 0, store.ErrAccountNotFound
	}
	if a.Balance+delta < 0 {
		return 0, store.ErrInsufficientFunds
	}
	a.Balance += delta
	s.accounts[accountID] = a
	return a.Balance, nil
}

func (s *repoStub) CreateCard(ctx context.Context, card *domain.Card) error {
	card.ID = uuid.New()
	s.cards[card.ID] = *card
	return nil
}

func (s *repoStub) FindCardByID(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	c, ok := s.cards[cardID]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	return &c, nil
}

func (s *repoStub) ListCardsByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Card, error) {
	var out []domain.Card
	for _, c := range s.cards {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *repoStub) UpdateCardPIN(ctx context.Context, cardID uuid.UUID, pinHash string, status domain.CardStatus) error {
	c, ok := s.cards[cardID]
	if !ok {
		return store.ErrCardNotFound
	}
	c.PINHash, c.PINSet, c.Status = &pinHash, true, status
	s.cards[cardID] = c
	return nil
}

func (s *repoStub) UpdateCardStatus(ctx context.Context, cardID uuid.UUID, status domain.CardStatus) error {
	c, ok := s.cards[cardID]
	if !ok {
		return store.ErrCardNotFound
	}
	c.Status = status
	s.cards[cardID] = c
	return nil
}

func (s *repoStub) ExpireCards(ctx context.Context, now time.Time) (int64, error) {
	return s.expired, nil
}

func (s *repoStub) CreateCheckDeposit(ctx context.Context, deposit *domain.CheckDeposit) error {
	deposit.ID = uuid.New()
	deposit.CreatedAt = time.Now()
	s.deposits[deposit.ID] = *deposit
	return nil
}

func (s *repoStub) FindCheckDepositForUpdate(ctx context.Context, depositID uuid.UUID) (*domain.CheckDeposit, error) {
	d, ok := s.deposits[depositID]
	if !ok {
		return nil, store.ErrDepositNotFound
	}
	return &d, nil
}

func (s *repoStub) ListPendingDeposits(ctx context.Context, limit int) ([]domain.CheckDeposit, error) {
	var out []domain.CheckDeposit
	for _, d := range s.deposits {
		if d.Status == domain.DepositPending {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *repoStub) ListStalePendingDepositIDs(ctx context.Context, submittedBefore time.Time, limit int) ([]uuid.UUID, error) {
	return s.staleIDs, nil
}

func (s *repoStub) MarkDepositReviewed(ctx context.Context, depositID uuid.UUID, status domain.DepositStatus, reviewer string, reason *string) error {
	d, ok := s.deposits[depositID]
	if !ok {
		return store.ErrDepositNotFound
	}
	d.Status, d.ReviewedBy, d.RejectionReason = status, &reviewer, reason
	s.deposits[depositID] = d
	return nil
}

func (s *repoStub) CreateTransaction(ctx context.Context, txn *domain.Transaction) error {
	txn.ID = uuid.New()
	s.transactions[txn.ID] = *txn
	return nil
}

func (s *repoStub) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	t, ok := s.transactions[transactionID]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	return &t, nil
}

func (s *repoStub) FindTransactionForUpdate(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	return s.FindTransactionByID(ctx, transactionID)
}

func (s *repoStub) UpdateTransactionStatus(ctx context.Context, transactionID uuid.UUID, status domain.TransactionStatus, reason *string) error {
	t, ok := s.transactions[transactionID]
	if !ok {
		return store.ErrTransactionNotFound
	}
	t.Status, t.StatusReason = status, reason
	s.transactions[transactionID] = t
	return nil
}

func (s *repoStub) ListTransactionsByAccountID(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, t := range s.transactions {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

// seedUser inserts a user directly, bypassing UserService.
func (s *repoStub) seedUser() *domain.User {
	u := domain.User{ID: uuid.New(), MembershipNumber: "100000000001", Email: uuid.NewString() + "@example.com"}
	s.users[u.ID] = u
	return &u
}

// seedAccount inserts an active account directly.
func (s *repoStub) seedAccount(userID uuid.UUID, balance int64, status domain.AccountStatus) *domain.Account {
	a := domain.Account{
		ID:                 uuid.New(),
		UserID:             userID,
		Type:               domain.CurrentAccount,
		Currency:           domain.GBP,
		AccountIdentifiers: domain.AccountIdentifiers{AccountNumber: "123456789012"},
		Balance:            balance,
		Status:             status,
	}
	s.accounts[a.ID] = a
	return &a
}

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

type publisherStub struct {
	events []publishedEvent
	err    error
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return p.err
}

func (p *publisherStub) routingKeys() []string {
	keys := make([]string, 0, len(p.events))
	for _, e := range p.events {
		keys = append(keys, e.routingKey)
	}
	return keys
}

type limiterStub struct {
	counts map[string]int
	resets int
	err    error
}

func (l *limiterStub) ConsumeAttempt(ctx context.Context, scope, subject string, window time.Duration) (int, int, error) {
	if l.err != nil {
		return 0, 0, l.err
	}
	if l.counts == nil {
		l.counts = map[string]int{}
	}
	l.counts[scope+subject]++
	return l.counts[scope+subject], int(window.Seconds()), nil
}

func (l *limiterStub) ResetAttempts(ctx context.Context, scope, subject string) error {
	l.resets++
	delete(l.counts, scope+subject)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	return config.Config{
		SortCodePrefix:    "90",
		BankCodeGB:        "HOMT",
		BankCodeDE:        "50070010",
		SwiftBICGBP:       "HOMTGB2LXXX",
		SwiftBICEUR:       "HOMTDEFFXXX",
		SwiftBICUSD:       "HOMTUS33XXX",
		CardBIN:           "453987",
		PINMaxAttempts:    3,
		PINLockoutSeconds: 900,
		DepositExpiryDays: 14,
	}
}

func testGenerator(t *testing.T, opts ...idgen.Option) *idgen.Generator {
	t.Helper()
	opts = append([]idgen.Option{
		idgen.WithSource(rand.New(rand.NewPCG(7, 11))),
		idgen.WithLogger(testLogger()),
	}, opts...)
	g, err := idgen.New(opts...)
	if err != nil {
		t.Fatalf("idgen.New returned error: %v", err)
	}
	return g
}
