package binding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/oauthflow/pkg/pg"
)

// Index names from the oauth_bindings migration; duplicate-key errors are
// mapped back to taxonomy errors by constraint name.
const (
	userProviderIdx     = "oauth_bindings_user_provider_idx"
	providerExternalIdx = "oauth_bindings_provider_external_idx"
)

const bindingColumns = `id, user_id, provider, external_id, email, name, avatar_url,
	access_token, refresh_token, expires_at, created_at, updated_at`

// PostgresStore is the production Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a postgres-backed Store. The oauth_bindings schema
// must already be migrated.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("binding: nil connection pool")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Bind(ctx context.Context, params BindParams) (Binding, error) {
	existing, err := s.FindByExternal(ctx, params.Provider, params.ExternalID)
	switch {
	case err == nil:
		if existing.UserID != params.UserID {
			return Binding{}, ErrExternalAlreadyBound
		}
		return s.update(ctx, existing.ID, params)
	case !errors.Is(err, ErrNotFound):
		return Binding{}, err
	}

	if _, err := s.FindByUserProvider(ctx, params.UserID, params.Provider); err == nil {
		return Binding{}, ErrAlreadyBound
	} else if !errors.Is(err, ErrNotFound) {
		return Binding{}, err
	}

	return s.insert(ctx, params)
}

func (s *PostgresStore) insert(ctx context.Context, params BindParams) (Binding, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO oauth_bindings (
			id, user_id, provider, external_id, email, name, avatar_url,
			access_token, refresh_token, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+bindingColumns,
		uuid.New(), params.UserID, params.Provider, params.ExternalID,
		params.Email, params.Name, params.AvatarURL,
		params.AccessToken, params.RefreshToken, params.ExpiresAt,
	)

	b, err := scanBinding(row)
	if err != nil {
		// Concurrent binds race on the unique indexes; the loser surfaces
		// the invariant the winner claimed first.
		if pg.IsDuplicateKeyError(err) {
			switch pg.ConstraintName(err) {
			case providerExternalIdx:
				return Binding{}, ErrExternalAlreadyBound
			case userProviderIdx:
				return Binding{}, ErrAlreadyBound
			}
		}
		return Binding{}, fmt.Errorf("failed to insert binding: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) update(ctx context.Context, id uuid.UUID, params BindParams) (Binding, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE oauth_bindings SET
			email = $2, name = $3, avatar_url = $4,
			access_token = $5, refresh_token = $6, expires_at = $7,
			updated_at = now()
		WHERE id = $1
		RETURNING `+bindingColumns,
		id, params.Email, params.Name, params.AvatarURL,
		params.AccessToken, params.RefreshToken, params.ExpiresAt,
	)

	b, err := scanBinding(row)
	if err != nil {
		return Binding{}, fmt.Errorf("failed to update binding: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) Unbind(ctx context.Context, userID uuid.UUID, provider string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM oauth_bindings WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	); err != nil {
		return fmt.Errorf("failed to delete binding: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]Binding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bindingColumns+` FROM oauth_bindings WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bindings: %w", err)
	}
	defer rows.Close()

	var bindings []Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan binding: %w", err)
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list bindings: %w", err)
	}
	return bindings, nil
}

func (s *PostgresStore) FindByExternal(ctx context.Context, provider, externalID string) (Binding, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+bindingColumns+` FROM oauth_bindings WHERE provider = $1 AND external_id = $2`,
		provider, externalID,
	)
	return s.findOne(row)
}

func (s *PostgresStore) FindByUserProvider(ctx context.Context, userID uuid.UUID, provider string) (Binding, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+bindingColumns+` FROM oauth_bindings WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	)
	return s.findOne(row)
}

func (s *PostgresStore) findOne(row pgx.Row) (Binding, error) {
	b, err := scanBinding(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return Binding{}, ErrNotFound
		}
		return Binding{}, fmt.Errorf("failed to query binding: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt *time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE oauth_bindings SET
			access_token = $2, refresh_token = $3, expires_at = $4, updated_at = now()
		WHERE id = $1`,
		id, accessToken, refreshToken, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update binding tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBinding(row pgx.Row) (Binding, error) {
	var b Binding
	err := row.Scan(
		&b.ID, &b.UserID, &b.Provider, &b.ExternalID, &b.Email, &b.Name,
		&b.AvatarURL, &b.AccessToken, &b.RefreshToken, &b.ExpiresAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}
