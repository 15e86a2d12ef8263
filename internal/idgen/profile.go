package idgen

import (
	"fmt"
	"strings"
)

// CountryProfile fixes the IBAN layout for one country.
type CountryProfile struct {
	Country        string
	BankCodeLength int
	BankCodeAlpha  bool
	BranchLength   int
	AccountLength  int
}

var (
	// ProfileGB: GB + 2 check digits + 4 letter bank code + 6 digit sort code + 8 digit account.
	ProfileGB = CountryProfile{Country: "GB", BankCodeLength: 4, BankCodeAlpha: true, BranchLength: 6, AccountLength: 8}
	// ProfileDE: DE + 2 check digits + 8 digit bank code + 10 digit account.
	ProfileDE = CountryProfile{Country: "DE", BankCodeLength: 8, AccountLength: 10}
	// ProfileUS is a pseudo-IBAN: US + 2 check digits + 9 digit routing number + 10 digit account.
	ProfileUS = CountryProfile{Country: "US", BankCodeLength: 9, AccountLength: 10}
)

// Length is the full IBAN length for the profile.
func (p CountryProfile) Length() int {
	return 4 + p.BankCodeLength + p.BranchLength + p.AccountLength
}

// ProfileForCurrency maps an account currency to its IBAN profile.
func ProfileForCurrency(currency string) (CountryProfile, error) {
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "GBP":
		return ProfileGB, nil
	case "EUR":
		return ProfileDE, nil
	case "USD":
		return ProfileUS, nil
	default:
		return CountryProfile{}, fmt.Errorf("%w: currency %q", ErrInvalidCountryProfile, currency)
	}
}

// BBAN is the country-specific part of an IBAN.
type BBAN struct {
	BankCode string
	Branch   string
	Account  string
}

func (b BBAN) String() string {
	return b.BankCode + b.Branch + b.Account
}

// Validate checks that the BBAN segments have the shape the profile requires.
func (p CountryProfile) Validate(b BBAN) error {
	if len(p.Country) != 2 || p.AccountLength <= 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidCountryProfile, p)
	}
	if len(b.BankCode) != p.BankCodeLength {
		return fmt.Errorf("%w: bank code %q must be %d characters", ErrInvalidBBAN, b.BankCode, p.BankCodeLength)
	}
	if p.BankCodeAlpha {
		if !isUpperAlpha(b.BankCode) {
			return fmt.Errorf("%w: bank code %q must be letters", ErrInvalidBBAN, b.BankCode)
		}
	} else if !isDigits(b.BankCode) {
		return fmt.Errorf("%w: bank code %q must be digits", ErrInvalidBBAN, b.BankCode)
	}
	if len(b.Branch) != p.BranchLength || (p.BranchLength > 0 && !isDigits(b.Branch)) {
		return fmt.Errorf("%w: branch %q must be %d digits", ErrInvalidBBAN, b.Branch, p.BranchLength)
	}
	if len(b.Account) != p.AccountLength || !isDigits(b.Account) {
		return fmt.Errorf("%w: account segment %q must be %d digits", ErrInvalidBBAN, b.Account, p.AccountLength)
	}
	return nil
}

// AccountSegment returns the trailing n digits of an account number, left
// padded with zeros when the number is shorter.
func AccountSegment(accountNumber string, n int) string {
	if len(accountNumber) >= n {
		return accountNumber[len(accountNumber)-n:]
	}
	return strings.Repeat("0", n-len(accountNumber)) + accountNumber
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isUpperAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
