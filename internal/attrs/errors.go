package attrs

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a block has no stored attributes.
var ErrNotFound = errors.New("block not found")

// StoreError wraps a backend failure with the operation and block key.
type StoreError struct {
	Driver    string // e.g. "sqlite"
	Operation string // "read", "write", "list", "open"
	Key       string
	Err       error
	Retryable bool
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s store: %s %q failed: %v", e.Driver, e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("%s store: %s failed: %v", e.Driver, e.Operation, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the block was never stored.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func notFound(driver, key string) error {
	return &StoreError{Driver: driver, Operation: "read", Key: key, Err: ErrNotFound}
}
