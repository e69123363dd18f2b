package state

import "errors"

var (
	// ErrStateNotFound covers absent, expired, already-consumed, and
	// provider-mismatched records alike, so callers cannot tell which
	// half of the validation failed.
	ErrStateNotFound = errors.New("state not found")
	// ErrInvalidData indicates a correlation record that fails validation.
	ErrInvalidData = errors.New("invalid state data")
)
