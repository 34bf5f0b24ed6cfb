package service

import (
	"context"
	"fmt"
	"strings"

	"cityServiceDesk/internal/auth"
	"cityServiceDesk/models"
	"cityServiceDesk/repository"
)

// Directory is the registration collaborator: it issues user identities.
// Credentials are out of its scope; tokens are minted by the caller.
type Directory struct {
	users repository.UserRepositoryI
}

func NewDirectory(users repository.UserRepositoryI) *Directory {
	return &Directory{users: users}
}

// Register creates a CITIZEN account. Email format is checked at the boundary.
func (d *Directory) Register(ctx context.Context, fullName, login, email string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, fmt.Errorf("%w: login is required", models.ErrValidation)
	}
	return d.users.Create(ctx, &models.User{
		FullName: strings.TrimSpace(fullName),
		Login:    login,
		Email:    strings.TrimSpace(email),
		Role:     models.RoleCitizen,
	})
}

// Me returns the caller's own account.
func (d *Directory) Me(ctx context.Context, caller *auth.Principal) (*models.User, error) {
	if caller == nil {
		return nil, fmt.Errorf("%w: authentication required", models.ErrAuthorization)
	}
	u, err := d.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %d", models.ErrNotFound, caller.UserID)
	}
	return u, nil
}

// EnsureAdmin returns the user with login, creating it if needed, and grants
// it the ADMIN role. Used for bootstrapping staff accounts from the command line.
func (d *Directory) EnsureAdmin(ctx context.Context, login string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, fmt.Errorf("%w: login is required", models.ErrValidation)
	}
	u, err := d.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return d.users.Create(ctx, &models.User{FullName: login, Login: login, Role: models.RoleAdmin})
	}
	if u.IsAdmin() {
		return u, nil
	}
	if err := d.users.UpdateRole(ctx, u.ID, models.RoleAdmin); err != nil {
		return nil, err
	}
	u.Role = models.RoleAdmin
	return u, nil
}

// Lookup returns the user with login or models.ErrNotFound.
func (d *Directory) Lookup(ctx context.Context, login string) (*models.User, error) {
	u, err := d.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %q", models.ErrNotFound, login)
	}
	return u, nil
}
