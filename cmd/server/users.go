package main

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrymomot/oauthflow/pkg/userstore"
	oauthsvc "github.com/dmitrymomot/oauthflow/svc/oauth"
)

// userAdapter narrows the user store to the directory and provisioner
// collaborators the oauth service expects.
type userAdapter struct {
	store *userstore.PostgresStore
}

func (a *userAdapter) UserByID(ctx context.Context, id uuid.UUID) (oauthsvc.User, error) {
	u, err := a.store.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return oauthsvc.User{}, oauthsvc.ErrUserNotFound
		}
		return oauthsvc.User{}, err
	}
	return toServiceUser(u), nil
}

func (a *userAdapter) UserByEmail(ctx context.Context, email string) (oauthsvc.User, error) {
	u, err := a.store.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return oauthsvc.User{}, oauthsvc.ErrUserNotFound
		}
		return oauthsvc.User{}, err
	}
	return toServiceUser(u), nil
}

func (a *userAdapter) CreateUser(ctx context.Context, nu oauthsvc.NewUser) (oauthsvc.User, error) {
	u, err := a.store.Create(ctx, userstore.CreateParams{
		Email:        nu.Email,
		Name:         nu.Name,
		AvatarURL:    nu.AvatarURL,
		PasswordHash: nu.PasswordHash,
	})
	if err != nil {
		return oauthsvc.User{}, err
	}
	return toServiceUser(u), nil
}

func toServiceUser(u userstore.User) oauthsvc.User {
	return oauthsvc.User{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Deleted: u.Deleted,
		Banned:  u.Banned,
	}
}
