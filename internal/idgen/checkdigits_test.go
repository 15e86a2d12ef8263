package idgen

import (
	"errors"
	"math/big"
	"regexp"
	"testing"
)

func TestCheckDigits_KnownValues(t *testing.T) {
	tests := []struct {
		country string
		bban    string
		want    string
	}{
		{country: "GB", bban: "WEST12345698765432", want: "82"},
		{country: "DE", bban: "370400440532013000", want: "89"},
		{country: "gb", bban: "west12345698765432", want: "82"},
	}

	for _, tt := range tests {
		t.Run(tt.country+tt.bban, func(t *testing.T) {
			got, err := CheckDigits(tt.country, tt.bban)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("CheckDigits(%q, %q) = %q, want %q", tt.country, tt.bban, got, tt.want)
			}
		})
	}
}

func TestCheckDigits_IsDeterministic(t *testing.T) {
	first, err := CheckDigits("GB", "HOMT900000"+"00000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !regexp.MustCompile(`^\d{2}$`).MatchString(first) {
		t.Fatalf("expected two digits, got %q", first)
	}
	for i := 0; i < 10; i++ {
		again, _ := CheckDigits("GB", "HOMT90000000000001")
		if again != first {
			t.Fatalf("expected %q on every call, got %q", first, again)
		}
	}
}

func TestCheckDigits_ComposedIBANReducesToOne(t *testing.T) {
	bbans := []struct {
		profile CountryProfile
		bban    BBAN
	}{
		{profile: ProfileGB, bban: BBAN{BankCode: "HOMT", Branch: "904512", Account: "77310045"}},
		{profile: ProfileDE, bban: BBAN{BankCode: "50070010", Account: "9988776655"}},
		{profile: ProfileUS, bban: BBAN{BankCode: "987654321", Account: "0000000042"}},
	}

	for _, b := range bbans {
		iban, err := ComposeIBAN(b.profile, b.bban)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rearranged := iban[4:] + iban[:4]
		numeric, err := toNumeric(rearranged)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		n, _ := new(big.Int).SetString(numeric, 10)
		if r := new(big.Int).Mod(n, big.NewInt(97)); r.Int64() != 1 {
			t.Fatalf("expected %q to reduce to 1 modulo 97, got %d", iban, r.Int64())
		}
	}
}

func TestCheckDigits_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		country string
		bban    string
		want    error
	}{
		{name: "short country", country: "G", bban: "HOMT900000", want: ErrInvalidCountryProfile},
		{name: "numeric country", country: "12", bban: "HOMT900000", want: ErrInvalidCountryProfile},
		{name: "empty bban", country: "GB", bban: "", want: ErrInvalidBBAN},
		{name: "punctuation", country: "GB", bban: "HOMT-900000", want: ErrInvalidBBAN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CheckDigits(tt.country, tt.bban); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
