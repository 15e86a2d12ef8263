/**
 * @description
 * Card issuance and PIN management. Card numbers come from the identifier
 * generator (BIN + random digits + Luhn check digit) and are checked against
 * existing cards with the same retry policy as account identifiers.
 *
 * @notes
 * - The full card number and CVV are returned once, at issuance.
 * - Failed PIN changes are counted in Redis; reaching the limit blocks the card.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hometown/backoffice-service/internal/config"
	"github.com/hometown/backoffice-service/internal/domain"
	"github.com/hometown/backoffice-service/internal/idgen"
	"github.com/hometown/backoffice-service/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const (
	cardValidityYears = 3
	cvvLength         = 3
	pinLength         = 4
	pinChangeScope    = "pin_change"
)

// CardService issues cards and manages their PINs and status.
type CardService struct {
	repo       store.Repository
	gen        *idgen.Generator
	limiter    AttemptLimiter
	logger     *slog.Logger
	config     config.Config
	bcryptCost int
	now        func() time.Time
}

// NewCardService creates a new instance of CardService.
func NewCardService(repo store.Repository, gen *idgen.Generator, limiter AttemptLimiter, logger *slog.Logger, cfg config.Config) *CardService {
	return &CardService{
		repo:       repo,
		gen:        gen,
		limiter:    limiter,
		logger:     logger,
		config:     cfg,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// IssueCardInput defines the input for issuing a card.
type IssueCardInput struct {
	AccountID      uuid.UUID
	CardholderName string
}

// IssueCard creates an inactive card on an active account.
func (s *CardService) IssueCard(ctx context.Context, input IssueCardInput) (*domain.IssuedCard, error) {
	name := strings.ToUpper(strings.Join(strings.Fields(input.CardholderName), " "))
	if name == "" {
		return nil, invalidInput("cardholder name is required")
	}

	cvv := s.gen.Digits(cvvLength)
	cvvHash, err := bcrypt.GenerateFromPassword([]byte(cvv), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("could not hash cvv: %w", err)
	}
	issued := s.now().UTC()

	var (
		card   *domain.Card
		number string
	)
	err = s.repo.WithTx(ctx, func(tx store.Repository) error {
		account, err := tx.FindAccountByID(ctx, input.AccountID)
		if err != nil {
			return err
		}
		if account.Status != domain.AccountActive {
			return ErrAccountNotActive
		}
		number, err = s.gen.UniqueCardNumber(ctx, tx, s.config.CardBIN)
		if err != nil {
			return err
		}
		card = &domain.Card{
			AccountID:      input.AccountID,
			CardNumber:     number,
			MaskedNumber:   store.MaskCardNumber(number),
			CardholderName: name,
			ExpiryMonth:    int(issued.Month()),
			ExpiryYear:     issued.Year() + cardValidityYears,
			CVVHash:        string(cvvHash),
			Status:         domain.CardInactive,
		}
		return tx.CreateCard(ctx, card)
	})
	if err != nil {
		return nil, allocationFailure(s.logger, "issue card", err)
	}

	s.logger.Info("card issued", "card_id", card.ID, "account_id", card.AccountID, "masked_number", card.MaskedNumber)
	return &domain.IssuedCard{Card: *card, CardNumber: number, CVV: cvv}, nil
}

// ListCardsByAccount returns the cards on an account with masked numbers.
func (s *CardService) ListCardsByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Card, error) {
	return s.repo.ListCardsByAccountID(ctx, accountID)
}

// SetPIN sets the first PIN of a card owned by ownerID and activates it.
func (s *CardService) SetPIN(ctx context.Context, ownerID, cardID uuid.UUID, pin string) (*domain.Card, error) {
	if err := validatePIN(pin); err != nil {
		return nil, err
	}
	card, err := s.ownedCard(ctx, ownerID, cardID)
	if err != nil {
		return nil, err
	}
	if card.PINSet {
		return nil, invalidInput("PIN is already set")
	}
	if card.Status != domain.CardInactive {
		return nil, fmt.Errorf("%w: card is %s", ErrInvalidTransition, card.Status)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("could not hash pin: %w", err)
	}
	if err := s.repo.UpdateCardPIN(ctx, cardID, string(hash), domain.CardActive); err != nil {
		return nil, err
	}

	s.logger.Info("card pin set", "card_id", cardID)
	card.PINSet = true
	card.Status = domain.CardActive
	return card, nil
}

// ChangePIN replaces the PIN after verifying the current one. Reaching
// PIN_MAX_ATTEMPTS wrong PINs within the lockout window blocks the card.
func (s *CardService) ChangePIN(ctx context.Context, ownerID, cardID uuid.UUID, oldPIN, newPIN string) error {
	if err := validatePIN(newPIN); err != nil {
		return err
	}
	card, err := s.ownedCard(ctx, ownerID, cardID)
	if err != nil {
		return err
	}
	if card.Status == domain.CardBlocked {
		return ErrCardLocked
	}
	if card.Status != domain.CardActive || card.PINHash == nil {
		return ErrCardNotActive
	}

	if bcrypt.CompareHashAndPassword([]byte(*card.PINHash), []byte(oldPIN)) != nil {
		return s.recordFailedPIN(ctx, cardID)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPIN), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("could not hash pin: %w", err)
	}
	if err := s.repo.UpdateCardPIN(ctx, cardID, string(hash), domain.CardActive); err != nil {
		return err
	}
	if err := s.limiter.ResetAttempts(ctx, pinChangeScope, cardID.String()); err != nil {
		s.logger.Warn("failed to reset pin attempt counter", "card_id", cardID, "error", err)
	}
	s.logger.Info("card pin changed", "card_id", cardID)
	return nil
}

func (s *CardService) recordFailedPIN(ctx context.Context, cardID uuid.UUID) error {
	window := time.Duration(s.config.PINLockoutSeconds) * time.Second
	count, _, err := s.limiter.ConsumeAttempt(ctx, pinChangeScope, cardID.String(), window)
	if err != nil {
		return fmt.Errorf("could not record pin attempt: %w", err)
	}
	if count < s.config.PINMaxAttempts {
		s.logger.Info("incorrect pin", "card_id", cardID, "attempt", count)
		return ErrIncorrectPIN
	}

	if err := s.repo.UpdateCardStatus(ctx, cardID, domain.CardBlocked); err != nil {
		return fmt.Errorf("could not block card: %w", err)
	}
	s.logger.Warn("card blocked after failed pin attempts", "card_id", cardID, "attempts", count)
	return ErrCardLocked
}

// SetCardStatus applies an admin status change. Cancelled and expired cards
// cannot change again, and activation requires a PIN.
func (s *CardService) SetCardStatus(ctx context.Context, cardID uuid.UUID, next domain.CardStatus) (*domain.Card, error) {
	switch next {
	case domain.CardActive, domain.CardBlocked, domain.CardCancelled:
	default:
		return nil, invalidInput("card status must be active, blocked or cancelled")
	}

	card, err := s.repo.FindCardByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.Status.Terminal() {
		return nil, fmt.Errorf("%w: card is %s", ErrInvalidTransition, card.Status)
	}
	if next == domain.CardActive && !card.PINSet {
		return nil, fmt.Errorf("%w: card has no PIN", ErrInvalidTransition)
	}
	if err := s.repo.UpdateCardStatus(ctx, cardID, next); err != nil {
		return nil, err
	}
	if next == domain.CardActive {
		if err := s.limiter.ResetAttempts(ctx, pinChangeScope, cardID.String()); err != nil {
			s.logger.Warn("failed to reset pin attempt counter", "card_id", cardID, "error", err)
		}
	}

	s.logger.Info("card status changed", "card_id", cardID, "from", card.Status, "to", next)
	card.Status = next
	return card, nil
}

func (s *CardService) ownedCard(ctx context.Context, ownerID, cardID uuid.UUID) (*domain.Card, error) {
	card, err := s.repo.FindCardByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	account, err := s.repo.FindAccountByID(ctx, card.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, store.ErrCardNotFound
		}
		return nil, err
	}
	if account.UserID != ownerID {
		return nil, ErrForbidden
	}
	return card, nil
}

// validatePIN accepts four digits that are not all equal and not a straight
// ascending or descending run.
func validatePIN(pin string) error {
	if len(pin) != pinLength {
		return invalidInput("PIN must be %d digits", pinLength)
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return invalidInput("PIN must be %d digits", pinLength)
		}
	}

	same, up, down := true, true, true
	for i := 1; i < len(pin); i++ {
		d := int(pin[i]) - int(pin[i-1])
		same = same && d == 0
		up = up && d == 1
		down = down && d == -1
	}
	if same || up || down {
		return invalidInput("PIN is too easy to guess")
	}
	return nil
}
