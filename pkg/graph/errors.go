package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors returned by this package unwrap to one of
// these.
var (
	// ErrValidation is returned for a malformed scope, edge or search.
	// Nothing has been encoded or appended when it is returned.
	ErrValidation = errors.New("graph: invalid input")

	// ErrDecode is returned when a column read from the store does not match
	// its family's key layout. Retrying will not help.
	ErrDecode = errors.New("graph: malformed edge key")
)

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("graph: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DecodeError describes a column that could not be decoded.
type DecodeError struct {
	Family Family
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("graph: decode %s: %s: %v", e.Family, e.Reason, e.Err)
	}
	return fmt.Sprintf("graph: decode %s: %s", e.Family, e.Reason)
}

// Unwrap returns ErrDecode and the underlying error, if any.
func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDecode, e.Err}
	}
	return []error{ErrDecode}
}
