package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad caller input: empty request text, an unknown
	// feature id at scoring time. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrTransientProvider marks a failed embedding or analysis fetch.
	// Retried with backoff at the call boundary.
	ErrTransientProvider = errors.New("transient provider error")

	// ErrInvariantViolation marks a broken internal invariant, such as
	// component scores outside [0,100] or weights not summing to 1.
	ErrInvariantViolation = errors.New("invariant violation")

	ErrNotFound = errors.New("not found")
)

func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Invariantf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
