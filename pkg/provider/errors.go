package provider

import "errors"

var (
	// ErrInvalidProvider indicates a provider identifier that fails syntax
	// validation. Returned before any lookup.
	ErrInvalidProvider = errors.New("invalid provider identifier")
	// ErrUnknownProvider indicates an identifier with no built-in or
	// settings-backed definition.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrNotConfigured indicates a known provider missing credentials or
	// endpoints.
	ErrNotConfigured = errors.New("provider not configured")
)
