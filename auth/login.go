package auth

import (
	"context"
	"strings"
	"time"

	"github.com/jrsteele09/go-fund-auth/audit"
	apperrors "github.com/jrsteele09/go-fund-auth/internal/errors"
	"github.com/jrsteele09/go-fund-auth/roles"
	"github.com/jrsteele09/go-fund-auth/token"
	"github.com/jrsteele09/go-fund-auth/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultMaxLoginAttempts = 5

// Profile is the display identity returned alongside a token pair.
type Profile struct {
	ID             string              `json:"id"`
	Username       string              `json:"username"`
	FullName       string              `json:"fullName,omitempty"`
	Email          string              `json:"email,omitempty"`
	RoleID         string              `json:"roleId"`
	RoleName       string              `json:"roleName"`
	BranchCode     string              `json:"branchCode,omitempty"`
	OrganizationID string              `json:"organizationId,omitempty"`
	Permissions    roles.PermissionSet `json:"permissions,omitempty"`
}

// Session is the body returned by login and refresh.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Profile
}

// Repos holds the store dependencies of the LoginService
type Repos struct {
	Users users.Repo
	Roles roles.Repo
}

// LoginService exchanges credentials and refresh tokens for token pairs. Consecutive failed
// passwords lock the account once the configured maximum is reached.
type LoginService struct {
	repos       Repos
	tokens      *token.Manager
	recorder    *audit.Recorder
	denylist    token.Denylist
	maxAttempts int
	nowFunc     func() time.Time
}

type LoginServiceOption func(*LoginService)

func WithMaxLoginAttempts(n int) LoginServiceOption {
	return func(ls *LoginService) {
		ls.maxAttempts = n
	}
}

func WithAuditRecorder(recorder *audit.Recorder) LoginServiceOption {
	return func(ls *LoginService) {
		ls.recorder = recorder
	}
}

// WithLoginDenylist denies outstanding access tokens of accounts locked by failed logins.
func WithLoginDenylist(denylist token.Denylist) LoginServiceOption {
	return func(ls *LoginService) {
		ls.denylist = denylist
	}
}

func WithLoginNowFunc(now func() time.Time) LoginServiceOption {
	return func(ls *LoginService) {
		ls.nowFunc = now
	}
}

func NewLoginService(repos Repos, tokens *token.Manager, options ...LoginServiceOption) (*LoginService, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewLoginService] Users repo is required")
	}
	if repos.Roles == nil {
		return nil, errors.New("[NewLoginService] Roles repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewLoginService] token manager is required")
	}
	ls := &LoginService{
		repos:       repos,
		tokens:      tokens,
		maxAttempts: DefaultMaxLoginAttempts,
		nowFunc:     time.Now,
	}
	for _, opt := range options {
		opt(ls)
	}
	return ls, nil
}

// Login verifies username and password and issues a new token pair.
func (ls *LoginService) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.Validation("username and password are required")
	}

	principal, err := ls.repos.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "LoginService.Login GetByUsername")
	}
	if principal.IsLocked {
		return nil, ErrAccountLocked
	}
	if !principal.IsActive {
		return nil, ErrAccountInactive
	}

	if !principal.CheckPassword(password) {
		return nil, ls.recordFailure(ctx, principal)
	}

	role, err := ls.repos.Roles.GetByID(ctx, principal.RoleID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, errors.Wrap(err, "LoginService.Login GetByID")
	}
	if !role.IsActive {
		return nil, ErrRoleInactive
	}

	if err := ls.repos.Users.RecordLoginSuccess(ctx, principal.ID, ls.nowFunc().UTC()); err != nil {
		return nil, errors.Wrap(err, "LoginService.Login RecordLoginSuccess")
	}

	log.Info().Str("principal_id", principal.ID).Str("username", principal.Username).Msg("login succeeded")
	return ls.issue(principal, role)
}

func (ls *LoginService) recordFailure(ctx context.Context, principal *users.Principal) error {
	attempts, err := ls.repos.Users.RecordLoginFailure(ctx, principal.ID)
	if err != nil {
		return errors.Wrap(err, "LoginService.Login RecordLoginFailure")
	}
	if ls.maxAttempts <= 0 || attempts < ls.maxAttempts {
		log.Debug().Str("principal_id", principal.ID).Int("attempts", attempts).Msg("login failed")
		return ErrInvalidCredentials
	}

	if err := ls.repos.Users.SetLocked(ctx, principal.ID, true); err != nil {
		return errors.Wrap(err, "LoginService.Login SetLocked")
	}
	now := ls.nowFunc()
	if ls.denylist != nil {
		if err := ls.denylist.Deny(ctx, principal.ID, now, ls.tokens.AccessTokenTTL()); err != nil {
			log.Err(err).Str("principal_id", principal.ID).Msg("failed to deny tokens of locked account")
		}
	}
	ls.recorder.Record(ctx, audit.Record{
		ActorID:   principal.ID,
		ActorName: principal.Username,
		Action:    audit.ActionUserLock,
		Table:     "users",
		RecordID:  principal.ID,
		OldValues: audit.Snapshot(map[string]any{"isLocked": false}),
		NewValues: audit.Snapshot(map[string]any{"isLocked": true, "reason": "too many failed login attempts"}),
	})
	log.Warn().Str("principal_id", principal.ID).Int("attempts", attempts).Msg("account locked after failed logins")
	return ErrAccountLocked
}

// Refresh redeems a refresh token for a rotated pair. The live principal and role are re-checked
// exactly as the authentication middleware does.
func (ls *LoginService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperrors.Validation("refresh token is required")
	}

	claims, err := ls.tokens.VerifyRefresh(refreshToken)
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		return nil, ErrRefreshTokenExpired
	case err != nil:
		return nil, ErrInvalidRefreshToken
	}

	principal, role, err := loadAccount(ctx, ls.repos.Users, ls.repos.Roles, claims.PrincipalID)
	if err != nil {
		return nil, err
	}
	return ls.issue(principal, role)
}

// Logout acknowledges a client logout. Tokens are stateless so nothing is invalidated server
// side; the refresh token is only read to attribute the log line.
func (ls *LoginService) Logout(_ context.Context, refreshToken string) {
	evt := log.Info()
	if claims, err := ls.tokens.VerifyRefresh(refreshToken); err == nil {
		evt = evt.Str("principal_id", claims.PrincipalID)
	}
	evt.Msg("logout")
}

func (ls *LoginService) issue(principal *users.Principal, role *roles.Role) (*Session, error) {
	pair, err := ls.tokens.IssuePair(principal, role)
	if err != nil {
		return nil, errors.Wrap(err, "LoginService.issue")
	}
	return &Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExpiresAt.UTC(),
		Profile:      NewProfile(principal, role),
	}, nil
}

func NewProfile(principal *users.Principal, role *roles.Role) Profile {
	p := Profile{
		ID:             principal.ID,
		Username:       principal.Username,
		FullName:       principal.FullName,
		Email:          principal.Email,
		RoleID:         principal.RoleID,
		BranchCode:     principal.BranchCode,
		OrganizationID: principal.OrganizationID,
	}
	if role != nil {
		p.RoleID = role.ID
		p.RoleName = role.Name
		p.Permissions = role.Permissions.Clone()
	}
	return p
}
