package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation              = errors.New("validation failed")
	ErrCapacityExceeded        = errors.New("capacity exceeded")
	ErrDateFullyBooked         = errors.New("date fully booked")
	ErrCodeGenerationExhausted = errors.New("could not generate a unique reservation code")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrUnauthenticated         = errors.New("invalid or expired token")
)

// ValidationError carries a message that is safe to show to the customer.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalidf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// DateFullyBookedError is returned when a date already holds the maximum number of reservations.
type DateFullyBookedError struct {
	Date string
	Max  int
}

func (e *DateFullyBookedError) Error() string {
	return fmt.Sprintf("This date is fully booked. Maximum %d reservations allowed.", e.Max)
}

func (e *DateFullyBookedError) Unwrap() []error {
	return []error{ErrDateFullyBooked, ErrCapacityExceeded}
}

// GameFullyReservedError is returned when every copy of a boardgame is taken on a date.
type GameFullyReservedError struct {
	GameID   int64
	GameName string
	Date     string
}

func (e *GameFullyReservedError) Error() string {
	return fmt.Sprintf("Boardgame %q is fully reserved for this date", e.GameName)
}

func (e *GameFullyReservedError) Unwrap() error { return ErrCapacityExceeded }
