package binding

import "errors"

var (
	// ErrNotFound indicates no binding matched the lookup.
	ErrNotFound = errors.New("binding not found")
	// ErrAlreadyBound indicates the (user, provider) pair is already bound
	// to a different external identity.
	ErrAlreadyBound = errors.New("provider already bound for user")
	// ErrExternalAlreadyBound indicates the external identity is already
	// bound to a different local user.
	ErrExternalAlreadyBound = errors.New("external identity already bound to another user")
)
