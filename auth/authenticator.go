package auth

import (
	"context"
	"strings"

	apperrors "github.com/jrsteele09/go-fund-auth/internal/errors"
	"github.com/jrsteele09/go-fund-auth/roles"
	"github.com/jrsteele09/go-fund-auth/token"
	"github.com/jrsteele09/go-fund-auth/users"
	"github.com/pkg/errors"
)

const bearerPrefix = "Bearer "

// Authenticator turns an Authorization header into a hydrated Identity. Every call re-reads the
// principal and its role from the store so that deactivation, locking and role changes apply on
// the very next request regardless of the token's remaining lifetime.
type Authenticator struct {
	tokens   *token.Manager
	users    users.Repo
	roles    roles.Repo
	denylist token.Denylist
}

type AuthenticatorOption func(*Authenticator)

// WithDenylist rejects tokens issued before a principal was denied.
func WithDenylist(denylist token.Denylist) AuthenticatorOption {
	return func(a *Authenticator) {
		a.denylist = denylist
	}
}

func NewAuthenticator(tokens *token.Manager, userRepo users.Repo, roleRepo roles.Repo, options ...AuthenticatorOption) (*Authenticator, error) {
	if tokens == nil {
		return nil, errors.New("[NewAuthenticator] token manager is required")
	}
	if userRepo == nil || roleRepo == nil {
		return nil, errors.New("[NewAuthenticator] user and role repos are required")
	}
	a := &Authenticator{tokens: tokens, users: userRepo, roles: roleRepo}
	for _, opt := range options {
		opt(a)
	}
	return a, nil
}

// BearerToken extracts the token from a "Bearer <token>" header value.
func BearerToken(header string) (string, error) {
	raw, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok {
		return "", ErrMissingHeader
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t") {
		return "", ErrMissingHeader
	}
	return raw, nil
}

// Authenticate verifies the bearer token in header and loads the live principal and role.
// Store failures are returned untyped so they surface as internal errors, never as an allow.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*Identity, error) {
	raw, err := BearerToken(header)
	if err != nil {
		return nil, err
	}

	claims, err := a.tokens.VerifyAccess(raw)
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		return nil, ErrAccessTokenExpired
	case err != nil:
		return nil, ErrInvalidToken
	}

	if a.denylist != nil {
		denied, err := a.denylist.IsDenied(ctx, claims.PrincipalID, claims.IssuedAt)
		if err != nil {
			return nil, errors.Wrap(err, "Authenticator.Authenticate denylist")
		}
		if denied {
			return nil, ErrTokenRevoked
		}
	}

	principal, role, err := loadAccount(ctx, a.users, a.roles, claims.PrincipalID)
	if err != nil {
		return nil, err
	}

	return &Identity{
		PrincipalID:    principal.ID,
		Username:       principal.Username,
		FullName:       principal.FullName,
		Email:          principal.Email,
		RoleID:         role.ID,
		BranchCode:     principal.BranchCode,
		OrganizationID: principal.OrganizationID,
		Role:           role,
		TokenIssuedAt:  claims.IssuedAt,
	}, nil
}

// loadAccount fetches a principal and its role and rejects any state that forbids access.
func loadAccount(ctx context.Context, userRepo users.Repo, roleRepo roles.Repo, principalID string) (*users.Principal, *roles.Role, error) {
	principal, err := userRepo.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, errors.Wrap(err, "load principal")
	}
	if !principal.IsActive {
		return nil, nil, ErrAccountInactive
	}
	if principal.IsLocked {
		return nil, nil, ErrAccountLocked
	}

	role, err := roleRepo.GetByID(ctx, principal.RoleID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, ErrRoleNotFound
		}
		return nil, nil, errors.Wrap(err, "load role")
	}
	if !role.IsActive {
		return nil, nil, ErrRoleInactive
	}
	return principal, role, nil
}
