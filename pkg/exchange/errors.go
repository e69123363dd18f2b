package exchange

import "errors"

// ErrExchangeFailed indicates the token endpoint rejected the request or
// returned an unusable response.
var ErrExchangeFailed = errors.New("token exchange failed")
