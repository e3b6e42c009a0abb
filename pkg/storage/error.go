package storage

import (
	"errors"
	"fmt"
)

// ErrUnavailable wraps a backend failure so callers can classify any store
// error as the persistence layer being unreachable or erroring, regardless
// of which driver produced it.
var ErrUnavailable = errors.New("storage unavailable")

// Unavailable wraps err as an ErrUnavailable with operation context.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// ErrNotFound is returned when a summary doesn't exist for a date key.
type ErrNotFound struct {
	DateKey string
}

func (e ErrNotFound) Error() string {
	if e.DateKey == "" {
		return "summary not found"
	}

	return "summary not found: " + e.DateKey
}
