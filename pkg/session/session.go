// Package session issues opaque bearer credentials backed by redis, keyed by
// token with a sliding-window-free fixed TTL.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "session:"

	// DefaultTTL is the session lifetime unless overridden.
	DefaultTTL = 7 * 24 * time.Hour
)

var (
	// ErrNotFound indicates a token that is absent, expired, or revoked.
	ErrNotFound = errors.New("session not found")
)

// Config holds session issuance settings.
type Config struct {
	TTL time.Duration `env:"SESSION_TTL" envDefault:"168h"` // Session lifetime.
}

// Issuer mints and verifies opaque bearer tokens.
type Issuer struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// Option configures the Issuer.
type Option func(*Issuer)

// WithTTL overrides the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// NewIssuer creates a redis-backed Issuer.
func NewIssuer(client redis.UniversalClient, opts ...Option) *Issuer {
	if client == nil {
		panic("session: nil redis client")
	}
	i := &Issuer{
		client: client,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue mints a bearer token for the user.
func (i *Issuer) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	if err := i.client.Set(ctx, keyPrefix+token, userID.String(), i.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return token, nil
}

// Verify resolves a bearer token to the user it was issued for.
func (i *Issuer) Verify(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrNotFound
	}

	val, err := i.client.Get(ctx, keyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to look up session: %w", err)
	}

	userID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, ErrNotFound
	}
	return userID, nil
}

// Revoke invalidates a token. Revoking an unknown token is not an error.
func (i *Issuer) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := i.client.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
