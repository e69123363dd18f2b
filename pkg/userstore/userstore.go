// Package userstore persists local accounts. It is the minimal account slice
// the OAuth flows need: lookup by id or email and auto-provisioning.
package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/oauthflow/pkg/pg"
	"github.com/dmitrymomot/oauthflow/pkg/sanitizer"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// ErrEmailTaken is returned when the email is already registered.
var ErrEmailTaken = errors.New("email already taken")

// User is a local account row.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	AvatarURL    string
	PasswordHash string
	Deleted      bool
	Banned       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateParams carries the fields for a new account.
type CreateParams struct {
	Email        string
	Name         string
	AvatarURL    string
	PasswordHash string
}

const userColumns = `id, email, name, avatar_url, password_hash, deleted, banned, created_at, updated_at`

// PostgresStore persists users on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a postgres-backed user store. The users schema must
// already be migrated.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("userstore: nil connection pool")
	}
	return &PostgresStore{pool: pool}
}

// ByID loads a user by id, including soft-deleted and banned accounts.
func (s *PostgresStore) ByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	)
	return s.findOne(row)
}

// ByEmail loads a user by normalized email.
func (s *PostgresStore) ByEmail(ctx context.Context, email string) (User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		sanitizer.NormalizeEmail(email),
	)
	return s.findOne(row)
}

// Create inserts a new account. The email is normalized before storage.
func (s *PostgresStore) Create(ctx context.Context, params CreateParams) (User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, avatar_url, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		uuid.New(), sanitizer.NormalizeEmail(params.Email),
		params.Name, params.AvatarURL, params.PasswordHash,
	)

	u, err := scanUser(row)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) findOne(row pgx.Row) (User, error) {
	u, err := scanUser(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.PasswordHash,
		&u.Deleted, &u.Banned, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}
