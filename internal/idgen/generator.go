/**
 * @description
 * Package idgen allocates the bank identifiers written into new user, account
 * and card records: membership numbers, account numbers, sort codes, IBANs,
 * US routing numbers and card numbers.
 *
 * Every allocation is generate, check, retry: a random candidate is built,
 * its existence is checked against the backing store and a fresh candidate is
 * drawn on collision, up to a fixed attempt ceiling. The check is advisory;
 * the unique indexes in the database remain the authoritative guard.
 */
package idgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
)

const (
	// DefaultMaxAttempts bounds every generate-check-retry loop.
	DefaultMaxAttempts = 100
	// DefaultSortCodePrefix is the fixed leading pair of every sort code.
	DefaultSortCodePrefix = "90"

	MembershipNumberLength = 12
	AccountNumberLength    = 12
	RoutingNumberLength    = 9
	CardNumberLength       = 16
)

// Field names a unique column that an identifier is written into.
type Field struct {
	Table  string
	Column string
}

func (f Field) String() string {
	return f.Table + "." + f.Column
}

var (
	MembershipNumberField = Field{Table: "users", Column: "membership_number"}
	USRoutingNumberField  = Field{Table: "users", Column: "us_routing_number"}
	AccountNumberField    = Field{Table: "accounts", Column: "account_number"}
	SortCodeField         = Field{Table: "accounts", Column: "sort_code"}
	IBANField             = Field{Table: "accounts", Column: "iban"}
	CardNumberField       = Field{Table: "cards", Column: "card_number"}
)

// Store reports whether a value is already present in a field.
type Store interface {
	Exists(ctx context.Context, field Field, value string) (bool, error)
}

// Source supplies random integers in [0, n).
type Source interface {
	IntN(n int) int
}

// CryptoSource draws from crypto/rand. It is the default: card numbers and
// CVVs must not be predictable from earlier output.
type CryptoSource struct{}

// IntN returns a uniform integer in [0, n). It panics if n <= 0.
func (CryptoSource) IntN(n int) int {
	if n <= 0 {
		panic("idgen: CryptoSource.IntN called with non-positive n")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("idgen: crypto/rand failed: %v", err))
	}
	return int(v.Int64())
}

// Generator allocates unique identifiers. It holds no state between calls and
// is safe for concurrent use when its Source is.
type Generator struct {
	source         Source
	maxAttempts    int
	sortCodePrefix string
	logger         *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithSource replaces the default crypto/rand source, e.g. with a seeded PCG in
// tests.
func WithSource(src Source) Option {
	return func(g *Generator) {
		if src != nil {
			g.source = src
		}
	}
}

// WithMaxAttempts overrides the attempt ceiling.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithSortCodePrefix overrides the two digit sort code prefix.
func WithSortCodePrefix(prefix string) Option {
	return func(g *Generator) {
		g.sortCodePrefix = prefix
	}
}

// WithLogger sets the logger used for collision diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a Generator. It returns an error when the configured sort code
// prefix is not exactly two digits.
func New(opts ...Option) (*Generator, error) {
	g := &Generator{
		source:         CryptoSource{},
		maxAttempts:    DefaultMaxAttempts,
		sortCodePrefix: DefaultSortCodePrefix,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if len(g.sortCodePrefix) != 2 || !isDigits(g.sortCodePrefix) {
		return nil, fmt.Errorf("sort code prefix %q must be two digits", g.sortCodePrefix)
	}
	return g, nil
}

// MaxAttempts returns the attempt ceiling.
func (g *Generator) MaxAttempts() int {
	return g.maxAttempts
}

// UniqueNumericID returns a random decimal string of length digits that is
// not present in field. The first digit is non-zero when length > 1.
func (g *Generator) UniqueNumericID(ctx context.Context, store Store, field Field, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	return g.unique(ctx, store, field, func() (string, error) {
		return g.digits(length, length > 1), nil
	})
}

// UniqueMembershipNumber allocates a 12 digit membership number.
func (g *Generator) UniqueMembershipNumber(ctx context.Context, store Store) (string, error) {
	return g.UniqueNumericID(ctx, store, MembershipNumberField, MembershipNumberLength)
}

// UniqueAccountNumber allocates a 12 digit account number.
func (g *Generator) UniqueAccountNumber(ctx context.Context, store Store) (string, error) {
	return g.UniqueNumericID(ctx, store, AccountNumberField, AccountNumberLength)
}

// UniqueSortCode returns the fixed prefix followed by four random digits.
func (g *Generator) UniqueSortCode(ctx context.Context, store Store) (string, error) {
	return g.unique(ctx, store, SortCodeField, func() (string, error) {
		return g.sortCodePrefix + g.digits(4, false), nil
	})
}

// UniqueIBAN composes an IBAN for profile from bban and checks it against the
// IBAN field. The first candidate uses bban as given; every retry replaces the
// account segment with fresh random digits and recomputes the check digits.
func (g *Generator) UniqueIBAN(ctx context.Context, store Store, profile CountryProfile, bban BBAN) (string, error) {
	if err := profile.Validate(bban); err != nil {
		return "", err
	}

	candidate := bban
	first := true
	return g.unique(ctx, store, IBANField, func() (string, error) {
		if !first {
			candidate.Account = g.digits(profile.AccountLength, false)
		}
		first = false
		return ComposeIBAN(profile, candidate)
	})
}

// USIdentifiers is the routing number and pseudo-IBAN of a USD account.
type USIdentifiers struct {
	RoutingNumber string
	IBAN          string
}

// UniqueUSRoutingAndIBAN allocates a unique routing number and then a unique
// pseudo-IBAN built from it and the trailing digits of seedAccountNumber.
func (g *Generator) UniqueUSRoutingAndIBAN(ctx context.Context, store Store, seedAccountNumber string) (USIdentifiers, error) {
	routing, err := g.UniqueNumericID(ctx, store, USRoutingNumberField, RoutingNumberLength)
	if err != nil {
		return USIdentifiers{}, err
	}

	iban, err := g.UniqueIBAN(ctx, store, ProfileUS, BBAN{
		BankCode: routing,
		Account:  AccountSegment(seedAccountNumber, ProfileUS.AccountLength),
	})
	if err != nil {
		return USIdentifiers{}, err
	}

	return USIdentifiers{RoutingNumber: routing, IBAN: iban}, nil
}

// UniqueCardNumber returns a 16 digit card number starting with bin and ending
// in a Luhn check digit.
func (g *Generator) UniqueCardNumber(ctx context.Context, store Store, bin string) (string, error) {
	if !isDigits(bin) || len(bin) >= CardNumberLength-1 {
		return "", fmt.Errorf("%w: card bin %q", ErrInvalidLength, bin)
	}
	return g.unique(ctx, store, CardNumberField, func() (string, error) {
		body := bin + g.digits(CardNumberLength-1-len(bin), false)
		return body + LuhnDigit(body), nil
	})
}

// Digits returns n random decimal digits without any uniqueness check.
func (g *Generator) Digits(n int) string {
	return g.digits(n, false)
}

// ComposeIBAN renders country code, check digits and BBAN.
func ComposeIBAN(profile CountryProfile, bban BBAN) (string, error) {
	if err := profile.Validate(bban); err != nil {
		return "", err
	}
	check, err := CheckDigits(profile.Country, bban.String())
	if err != nil {
		return "", err
	}
	return profile.Country + check + bban.String(), nil
}

// LuhnDigit returns the Luhn check digit for a string of digits.
func LuhnDigit(digits string) string {
	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return string(rune('0' + (10-sum%10)%10))
}

func (g *Generator) unique(ctx context.Context, store Store, field Field, next func() (string, error)) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate, err := next()
		if err != nil {
			return "", err
		}

		taken, err := store.Exists(ctx, field, candidate)
		if err != nil {
			return "", fmt.Errorf("checking %s: %w", field, err)
		}
		if !taken {
			return candidate, nil
		}
		g.logger.Debug("identifier collision", "field", field.String(), "attempt", attempt)
	}

	g.logger.Error("identifier space exhausted", "field", field.String(), "attempts", g.maxAttempts)
	return "", &ExhaustedError{Field: field, Attempts: g.maxAttempts}
}

func (g *Generator) digits(n int, nonZeroFirst bool) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		if i == 0 && nonZeroFirst {
			b.WriteByte(byte('1' + g.source.IntN(9)))
			continue
		}
		b.WriteByte(byte('0' + g.source.IntN(10)))
	}
	return b.String()
}
