package shaper

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedNull is returned when a null cell is read into a value
	// that cannot hold null
	ErrUnexpectedNull = errors.New("unexpected null value")

	// ErrInvalidType is returned when a cell cannot be converted to the
	// type it is read into
	ErrInvalidType = errors.New("invalid value type")

	// ErrInvalidShape is returned by Compile for descriptions that cannot
	// be materialized
	ErrInvalidShape = errors.New("invalid shaper description")
)

// MaterializationError carries the entity and property a cell was read for.
// It is only produced when detailed errors are enabled.
type MaterializationError struct {
	Entity   string
	Property string
	Ordinal  int
	Err      error
}

func (e *MaterializationError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("materializing column %d: %v", e.Ordinal, e.Err)
	}
	return fmt.Sprintf("materializing %s.%s (column %d): %v", e.Entity, e.Property, e.Ordinal, e.Err)
}

func (e *MaterializationError) Unwrap() error {
	return e.Err
}
