package idgen

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

var ninetySeven = big.NewInt(97)

// CheckDigits computes the two IBAN check digits for a country code and BBAN.
//
// Letters map to A=10 ... Z=35, the country code and a "00" placeholder are
// appended to the BBAN and the resulting number is reduced modulo 97. The
// check value is 98 minus the remainder, zero padded. The BBAN structure is
// not validated against any registry, so the result is only a simplified
// stand-in for ISO 7064 MOD97-10 and values already stored depend on it.
func CheckDigits(countryCode, bban string) (string, error) {
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))
	if len(countryCode) != 2 || !isUpperAlpha(countryCode) {
		return "", fmt.Errorf("%w: country code %q", ErrInvalidCountryProfile, countryCode)
	}
	if bban == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidBBAN)
	}

	numeric, err := toNumeric(strings.ToUpper(bban) + countryCode)
	if err != nil {
		return "", err
	}

	// Long BBANs exceed 64 bits once letters are expanded.
	n, ok := new(big.Int).SetString(numeric+"00", 10)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidBBAN, bban)
	}
	remainder := new(big.Int).Mod(n, ninetySeven).Int64()

	return fmt.Sprintf("%02d", 98-remainder), nil
}

func toNumeric(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteString(strconv.Itoa(int(r-'A') + 10))
		default:
			return "", fmt.Errorf("%w: unexpected character %q", ErrInvalidBBAN, r)
		}
	}
	return b.String(), nil
}
