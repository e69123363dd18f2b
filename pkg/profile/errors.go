package profile

import "errors"

var (
	// ErrFetchFailed indicates the user-info endpoint rejected the request
	// or returned an unusable response.
	ErrFetchFailed = errors.New("profile fetch failed")
	// ErrIncompleteProfile indicates a payload with no usable external id.
	ErrIncompleteProfile = errors.New("profile missing external id")
)
