package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. Every more specific error below wraps one
// of these, so callers classify with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrInvalidUserID = fmt.Errorf("%w: invalid user id", ErrValidation)
	ErrStorage       = errors.New("storage error")
)

var (
	ErrInvalidAmount       = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidDate         = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidPeriod       = fmt.Errorf("%w: invalid period", ErrValidation)
	ErrInvalidDateRange    = fmt.Errorf("%w: start date must not be after end date", ErrValidation)
	ErrEmptyName           = fmt.Errorf("%w: empty name", ErrValidation)
	ErrEmptyCategory       = fmt.Errorf("%w: empty category", ErrValidation)
	ErrEmptySubcategory    = fmt.Errorf("%w: empty subcategory", ErrValidation)
	ErrEmptySource         = fmt.Errorf("%w: empty source", ErrValidation)
	ErrNegativeProgress    = fmt.Errorf("%w: goal progress cannot be negative", ErrValidation)
	ErrTargetDateNotFuture = fmt.Errorf("%w: target date must be in the future", ErrValidation)
)

// StorageError reports a failure of the underlying store (I/O, corruption,
// constraint violations the engine did not anticipate).
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NotFound builds an ErrNotFound for a record kind and key.
func NotFound(kind string, key any) error {
	return fmt.Errorf("%s %v: %w", kind, key, ErrNotFound)
}
