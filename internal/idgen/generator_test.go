package idgen

import (
	"context"
	"errors"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"testing"
)

type storeStub struct {
	taken        map[string]bool
	collideFirst int
	err          error

	values []string
	fields []Field
}

func (s *storeStub) Exists(ctx context.Context, field Field, value string) (bool, error) {
	s.values = append(s.values, value)
	s.fields = append(s.fields, field)
	if s.err != nil {
		return false, s.err
	}
	if len(s.values) <= s.collideFirst {
		return true, nil
	}
	return s.taken[value], nil
}

type alwaysTaken struct {
	calls int
}

func (s *alwaysTaken) Exists(ctx context.Context, field Field, value string) (bool, error) {
	s.calls++
	return true, nil
}

func newTestGenerator(t *testing.T, seed uint64, opts ...Option) *Generator {
	t.Helper()
	opts = append([]Option{WithSource(rand.New(rand.NewPCG(seed, seed+1)))}, opts...)
	g, err := New(opts...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return g
}

func TestUniqueNumericID_LengthAndLeadingDigit(t *testing.T) {
	g := newTestGenerator(t, 1)
	ctx := context.Background()

	for _, length := range []int{1, 2, 6, 9, 12, 24} {
		pattern := regexp.MustCompile(`^[1-9]\d{` + strconv.Itoa(length-1) + `}$`)
		for i := 0; i < 200; i++ {
			id, err := g.UniqueNumericID(ctx, &storeStub{}, AccountNumberField, length)
			if err != nil {
				t.Fatalf("length %d: unexpected error %v", length, err)
			}
			if length == 1 {
				if !regexp.MustCompile(`^\d$`).MatchString(id) {
					t.Fatalf("expected a single digit, got %q", id)
				}
				continue
			}
			if !pattern.MatchString(id) {
				t.Fatalf("length %d: got %q", length, id)
			}
		}
	}
}

func TestUniqueNumericID_RejectsInvalidLength(t *testing.T) {
	g := newTestGenerator(t, 1)
	store := &storeStub{}

	_, err := g.UniqueNumericID(context.Background(), store, AccountNumberField, 0)
	if !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
	if len(store.values) != 0 {
		t.Fatalf("expected no store lookups, got %d", len(store.values))
	}
}

func TestUniqueNumericID_SkipsValuesAlreadyInStore(t *testing.T) {
	ctx := context.Background()
	const collisions = 3

	// Same seed, same candidate sequence.
	recorder := &storeStub{collideFirst: collisions}
	if _, err := newTestGenerator(t, 42).UniqueMembershipNumber(ctx, recorder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sequence := recorder.values

	taken := map[string]bool{}
	for _, v := range sequence[:collisions] {
		taken[v] = true
	}
	store := &storeStub{taken: taken}

	got, err := newTestGenerator(t, 42).UniqueMembershipNumber(ctx, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != sequence[collisions] {
		t.Fatalf("expected candidate %d (%q), got %q", collisions+1, sequence[collisions], got)
	}
	if taken[got] {
		t.Fatalf("returned value %q is already in the store", got)
	}
	if len(store.values) != collisions+1 {
		t.Fatalf("expected %d lookups, got %d", collisions+1, len(store.values))
	}
	for _, f := range store.fields {
		if f != MembershipNumberField {
			t.Fatalf("expected lookups against %s, got %s", MembershipNumberField, f)
		}
	}
}

func TestUniqueNumericID_ExhaustsAfterExactlyMaxAttempts(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		attempts int
	}{
		{name: "default ceiling", attempts: DefaultMaxAttempts},
		{name: "custom ceiling", opts: []Option{WithMaxAttempts(7)}, attempts: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerator(t, 9, tt.opts...)
			store := &alwaysTaken{}

			_, err := g.UniqueAccountNumber(context.Background(), store)
			if !errors.Is(err, ErrGenerationExhausted) {
				t.Fatalf("expected ErrGenerationExhausted, got %v", err)
			}
			var exhausted *ExhaustedError
			if !errors.As(err, &exhausted) {
				t.Fatalf("expected *ExhaustedError, got %T", err)
			}
			if exhausted.Attempts != tt.attempts || exhausted.Field != AccountNumberField {
				t.Fatalf("unexpected exhaustion detail: %+v", exhausted)
			}
			if store.calls != tt.attempts {
				t.Fatalf("expected %d lookups, got %d", tt.attempts, store.calls)
			}
		})
	}
}

func TestUniqueNumericID_PropagatesStoreErrors(t *testing.T) {
	g := newTestGenerator(t, 3)
	storeErr := errors.New("connection reset")
	store := &storeStub{err: storeErr}

	_, err := g.UniqueAccountNumber(context.Background(), store)
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
	if errors.Is(err, ErrGenerationExhausted) {
		t.Fatal("store failure must not be reported as exhaustion")
	}
	if len(store.values) != 1 {
		t.Fatalf("expected a single lookup, got %d", len(store.values))
	}
}

func TestUniqueNumericID_StopsOnCancelledContext(t *testing.T) {
	g := newTestGenerator(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &storeStub{}
	if _, err := g.UniqueAccountNumber(ctx, store); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(store.values) != 0 {
		t.Fatalf("expected no lookups, got %d", len(store.values))
	}
}

func TestUniqueSortCode_UsesPrefix(t *testing.T) {
	g := newTestGenerator(t, 5, WithSortCodePrefix("90"))
	pattern := regexp.MustCompile(`^90\d{4}$`)

	for i := 0; i < 100; i++ {
		code, err := g.UniqueSortCode(context.Background(), &storeStub{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !pattern.MatchString(code) {
			t.Fatalf("expected sort code matching %s, got %q", pattern, code)
		}
	}
}

func TestUniqueSortCode_RetriesOnCollision(t *testing.T) {
	g := newTestGenerator(t, 5)
	store := &storeStub{collideFirst: 2}

	code, err := g.UniqueSortCode(context.Background(), store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.values) != 3 || store.values[2] != code {
		t.Fatalf("expected the third candidate to be returned, lookups=%v got=%q", store.values, code)
	}
	if store.fields[0] != SortCodeField {
		t.Fatalf("expected lookups against %s, got %s", SortCodeField, store.fields[0])
	}
}

func TestNew_RejectsMalformedSortCodePrefix(t *testing.T) {
	for _, prefix := range []string{"", "9", "900", "9a"} {
		if _, err := New(WithSortCodePrefix(prefix)); err == nil {
			t.Fatalf("expected error for prefix %q", prefix)
		}
	}
}

func TestUniqueIBAN_LengthPerProfile(t *testing.T) {
	tests := []struct {
		name    string
		profile CountryProfile
		bban    BBAN
		want    int
	}{
		{name: "GB", profile: ProfileGB, bban: BBAN{BankCode: "HOMT", Branch: "900000", Account: "00000001"}, want: 22},
		{name: "DE", profile: ProfileDE, bban: BBAN{BankCode: "50070010", Account: "0123456789"}, want: 22},
		{name: "US", profile: ProfileUS, bban: BBAN{BankCode: "123456789", Account: "0123456789"}, want: 23},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerator(t, 11)
			iban, err := g.UniqueIBAN(context.Background(), &storeStub{}, tt.profile, tt.bban)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(iban) != tt.want || tt.profile.Length() != tt.want {
				t.Fatalf("expected length %d, got %d (%q)", tt.want, len(iban), iban)
			}
			if !strings.HasPrefix(iban, tt.profile.Country) || !strings.HasSuffix(iban, tt.bban.String()) {
				t.Fatalf("unexpected layout %q", iban)
			}
			check, _ := CheckDigits(tt.profile.Country, tt.bban.String())
			if iban[2:4] != check {
				t.Fatalf("expected check digits %s, got %s", check, iban[2:4])
			}
		})
	}
}

func TestUniqueIBAN_RandomizesAccountSegmentOnCollision(t *testing.T) {
	g := newTestGenerator(t, 13)
	store := &storeStub{collideFirst: 1}
	bban := BBAN{BankCode: "HOMT", Branch: "901234", Account: "12345678"}

	iban, err := g.UniqueIBAN(context.Background(), store, ProfileGB, bban)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.values[0] != mustCompose(t, ProfileGB, bban) {
		t.Fatalf("expected first candidate to use the supplied BBAN, got %q", store.values[0])
	}
	if iban != store.values[1] {
		t.Fatalf("expected second candidate, got %q", iban)
	}
	if iban[4:14] != "HOMT901234" {
		t.Fatalf("expected bank code and sort code to be kept, got %q", iban)
	}
	retried := BBAN{BankCode: "HOMT", Branch: "901234", Account: iban[14:]}
	if iban != mustCompose(t, ProfileGB, retried) {
		t.Fatalf("expected check digits to be recomputed for %q", iban)
	}
}

func TestUniqueIBAN_RejectsMismatchedBBAN(t *testing.T) {
	g := newTestGenerator(t, 1)
	_, err := g.UniqueIBAN(context.Background(), &storeStub{}, ProfileGB, BBAN{BankCode: "HOMT", Branch: "90", Account: "1"})
	if !errors.Is(err, ErrInvalidBBAN) {
		t.Fatalf("expected ErrInvalidBBAN, got %v", err)
	}
}

func TestUniqueUSRoutingAndIBAN(t *testing.T) {
	g := newTestGenerator(t, 17)
	store := &storeStub{}

	ids, err := g.UniqueUSRoutingAndIBAN(context.Background(), store, "400012345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !regexp.MustCompile(`^[1-9]\d{8}$`).MatchString(ids.RoutingNumber) {
		t.Fatalf("unexpected routing number %q", ids.RoutingNumber)
	}
	if len(ids.IBAN) != 23 || ids.IBAN[:2] != "US" {
		t.Fatalf("unexpected pseudo-IBAN %q", ids.IBAN)
	}
	if ids.IBAN[4:13] != ids.RoutingNumber || ids.IBAN[13:] != "0012345678" {
		t.Fatalf("expected routing and account segment in %q", ids.IBAN)
	}
	if len(store.fields) != 2 || store.fields[0] != USRoutingNumberField || store.fields[1] != IBANField {
		t.Fatalf("expected routing lookup before IBAN lookup, got %v", store.fields)
	}
}

func TestUniqueCardNumber_LuhnValid(t *testing.T) {
	g := newTestGenerator(t, 19)

	for i := 0; i < 50; i++ {
		number, err := g.UniqueCardNumber(context.Background(), &storeStub{}, "453987")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(number) != CardNumberLength || !strings.HasPrefix(number, "453987") {
			t.Fatalf("unexpected card number %q", number)
		}
		if !luhnValid(number) {
			t.Fatalf("card number %q fails the Luhn check", number)
		}
	}
}

func TestLuhnDigit(t *testing.T) {
	// 79927398713 is the textbook Luhn example.
	if got := LuhnDigit("7992739871"); got != "3" {
		t.Fatalf("expected 3, got %s", got)
	}
}

func TestAccountSegment(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "400012345678", n: 8, want: "12345678"},
		{in: "400012345678", n: 10, want: "0012345678"},
		{in: "1234", n: 8, want: "00001234"},
	}
	for _, tt := range tests {
		if got := AccountSegment(tt.in, tt.n); got != tt.want {
			t.Fatalf("AccountSegment(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestProfileForCurrency(t *testing.T) {
	for currency, country := range map[string]string{"GBP": "GB", "eur": "DE", "USD": "US"} {
		p, err := ProfileForCurrency(currency)
		if err != nil || p.Country != country {
			t.Fatalf("ProfileForCurrency(%q) = %v, %v", currency, p.Country, err)
		}
	}
	if _, err := ProfileForCurrency("JPY"); !errors.Is(err, ErrInvalidCountryProfile) {
		t.Fatalf("expected ErrInvalidCountryProfile, got %v", err)
	}
}

func mustCompose(t *testing.T, profile CountryProfile, bban BBAN) string {
	t.Helper()
	iban, err := ComposeIBAN(profile, bban)
	if err != nil {
		t.Fatalf("ComposeIBAN: %v", err)
	}
	return iban
}

func luhnValid(number string) bool {
	return LuhnDigit(number[:len(number)-1]) == number[len(number)-1:]
}

func TestNew_DefaultsToCryptoSource(t *testing.T) {
	g, err := New()
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, ok := g.source.(CryptoSource); !ok {
		t.Fatalf("expected the default source to be CryptoSource, got %T", g.source)
	}

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		cvv := g.Digits(3)
		if !regexp.MustCompile(`^\d{3}$`).MatchString(cvv) {
			t.Fatalf("unexpected digits %q", cvv)
		}
		seen[cvv] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected varied output from the default source, got %v", seen)
	}
}

func TestCryptoSource_IntNRange(t *testing.T) {
	var src CryptoSource
	for _, n := range []int{1, 2, 10, 97} {
		for i := 0; i < 200; i++ {
			if v := src.IntN(n); v < 0 || v >= n {
				t.Fatalf("IntN(%d) returned %d", n, v)
			}
		}
	}
}
