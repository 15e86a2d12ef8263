package idgen

import (
	"errors"
	"fmt"
)

var (
	// ErrGenerationExhausted is returned when no unique candidate was found
	// within the attempt ceiling. Callers must abort the surrounding creation.
	ErrGenerationExhausted = errors.New("identifier generation exhausted")

	// ErrInvalidCountryProfile is returned for an unsupported country or currency.
	ErrInvalidCountryProfile = errors.New("invalid country profile")

	// ErrInvalidBBAN is returned when a BBAN does not fit its country profile.
	ErrInvalidBBAN = errors.New("invalid bban")

	// ErrInvalidLength is returned for a non-positive identifier length.
	ErrInvalidLength = errors.New("invalid identifier length")
)

// ExhaustedError carries the field and attempt count of a failed allocation.
type ExhaustedError struct {
	Field    Field
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: no unique value for %s after %d attempts", ErrGenerationExhausted, e.Field, e.Attempts)
}

func (e *ExhaustedError) Unwrap() error {
	return ErrGenerationExhausted
}
