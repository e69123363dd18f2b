// Package state issues and consumes the single-use correlation tokens that
// tie an OAuth callback back to the request that started the flow.
package state

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL bounds how long an unconsumed flow stays valid.
const DefaultTTL = 10 * time.Minute

// Mode distinguishes a login round trip from a bind round trip.
type Mode string

const (
	ModeLogin Mode = "login"
	ModeBind  Mode = "bind"
)

// Data is the correlation record stored per flow. UserID is set only for
// bind mode.
type Data struct {
	Provider string    `json:"provider"`
	Mode     Mode      `json:"mode"`
	UserID   uuid.UUID `json:"user_id,omitzero"`
}

// Validate checks the record is internally consistent before storage.
func (d Data) Validate() error {
	if d.Provider == "" {
		return fmt.Errorf("%w: empty provider", ErrInvalidData)
	}
	switch d.Mode {
	case ModeLogin:
	case ModeBind:
		if d.UserID == uuid.Nil {
			return fmt.Errorf("%w: bind mode requires a user id", ErrInvalidData)
		}
	default:
		return fmt.Errorf("%w: mode %q", ErrInvalidData, d.Mode)
	}
	return nil
}

// Store persists flow correlation records.
//
// Consume atomically removes the record for token so that at most one caller
// observes it; absence, expiry, and provider mismatch are all reported as
// ErrStateNotFound. An empty provider argument skips the match, for callers
// that learn the provider from the record itself.
type Store interface {
	Create(ctx context.Context, data Data) (string, error)
	Consume(ctx context.Context, provider, token string) (Data, error)
}

// newToken returns a 256-bit random token in URL-safe base64.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// matches reports whether the stored record belongs to the named provider.
func matches(d Data, provider string) bool {
	return provider == "" || d.Provider == provider
}
