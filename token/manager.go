package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-fund-auth/roles"
	"github.com/jrsteele09/go-fund-auth/users"
	"github.com/pkg/errors"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Pair is an access token together with the refresh token minted alongside it.
type Pair struct {
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
	AccessExpiresAt time.Time `json:"-"`
}

// Manager issues and verifies access and refresh tokens. The two token types are signed with
// different signers so that neither can be forged from the other's verification context.
// Tokens are stateless; there is no server side session store.
type Manager struct {
	accessSigner    Signer
	refreshSigner   Signer
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	nowFunc         func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenTTL, refreshTokenTTL time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenTTL = accessTokenTTL
		m.refreshTokenTTL = refreshTokenTTL
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(accessSigner, refreshSigner Signer, options ...ManagerOption) (*Manager, error) {
	if accessSigner == nil || refreshSigner == nil {
		return nil, errors.New("[token.New] access and refresh signers are required")
	}
	m := &Manager{
		accessSigner:  accessSigner,
		refreshSigner: refreshSigner,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenTTL <= 0 {
		m.accessTokenTTL = DefaultAccessTokenTTL
	}
	if m.refreshTokenTTL <= 0 {
		m.refreshTokenTTL = DefaultRefreshTokenTTL
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m, nil
}

// NewHMACManager builds a Manager from the two configured secrets, which must differ.
func NewHMACManager(accessSecret, refreshSecret string, options ...ManagerOption) (*Manager, error) {
	access, refresh := strings.TrimSpace(accessSecret), strings.TrimSpace(refreshSecret)
	if access == "" || refresh == "" {
		return nil, errors.New("[token.NewHMACManager] both secrets are required")
	}
	if access == refresh {
		return nil, errors.New("[token.NewHMACManager] access and refresh secrets must differ")
	}
	return New(NewHMACSigner(accessSecret), NewHMACSigner(refreshSecret), options...)
}

func (m *Manager) AccessTokenTTL() time.Duration  { return m.accessTokenTTL }
func (m *Manager) RefreshTokenTTL() time.Duration { return m.refreshTokenTTL }

// IssueAccessToken embeds a capability snapshot of the principal and its role.
func (m *Manager) IssueAccessToken(principal *users.Principal, role *roles.Role) (string, time.Time, error) {
	if principal == nil || role == nil {
		return "", time.Time{}, errors.New("[Manager.IssueAccessToken] principal and role are required")
	}
	now := m.issuedAt()
	expiresAt := now.Add(m.accessTokenTTL)

	claims := jwt.MapClaims{
		"id":          principal.ID,
		"username":    principal.Username,
		"roleId":      role.ID,
		"roleName":    role.Name,
		"branchCode":  principal.BranchCode,
		"permissions": role.Permissions.Clone(),
		"iat":         now.Unix(),
		"exp":         expiresAt.Unix(),
		"jti":         uuid.New().String(),
	}

	signed, err := m.accessSigner.Sign(claims)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "Manager.IssueAccessToken Sign")
	}
	return signed, expiresAt, nil
}

// issuedAt is the current time at the one second resolution of the iat and exp claims, so that
// exp is exactly issue time plus TTL.
func (m *Manager) issuedAt() time.Time {
	return m.nowFunc().Truncate(time.Second)
}

// IssueRefreshToken carries only the principal id and expiry, plus a random jti so that every
// rotation yields a distinct token.
func (m *Manager) IssueRefreshToken(principal *users.Principal) (string, error) {
	if principal == nil {
		return "", errors.New("[Manager.IssueRefreshToken] principal is required")
	}
	claims := jwt.MapClaims{
		"id":  principal.ID,
		"exp": m.issuedAt().Add(m.refreshTokenTTL).Unix(),
		"jti": uuid.New().String(),
	}
	signed, err := m.refreshSigner.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "Manager.IssueRefreshToken Sign")
	}
	return signed, nil
}

// IssuePair mints a fresh access and refresh token for principal.
func (m *Manager) IssuePair(principal *users.Principal, role *roles.Role) (*Pair, error) {
	access, expiresAt, err := m.IssueAccessToken(principal, role)
	if err != nil {
		return nil, err
	}
	refresh, err := m.IssueRefreshToken(principal)
	if err != nil {
		return nil, err
	}
	return &Pair{AccessToken: access, RefreshToken: refresh, AccessExpiresAt: expiresAt}, nil
}

// VerifyAccess verifies raw against the access token secret.
func (m *Manager) VerifyAccess(raw string) (*Claims, error) {
	return m.Verify(raw, m.accessSigner)
}

// VerifyRefresh verifies raw against the refresh token secret.
func (m *Manager) VerifyRefresh(raw string) (*Claims, error) {
	return m.Verify(raw, m.refreshSigner)
}

// Verify checks the signature with signer then expiry. It fails with ErrTokenExpired when the
// current time is at or past exp, and with ErrTokenMalformed for every other problem.
func (m *Manager) Verify(raw string, signer Signer) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.Wrap(ErrTokenMalformed, "empty token")
	}

	wire := &wireClaims{}
	token, err := jwt.ParseWithClaims(raw, wire, signer.GetVerificationKey,
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{signer.GetSigningMethod().Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(ErrTokenMalformed, err.Error())
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	claims, err := wire.normalize()
	if err != nil {
		return nil, errors.Wrap(ErrTokenMalformed, err.Error())
	}
	return claims, nil
}

// DecodeUnverified reads claims without checking the signature. It is meant for clients that
// need the expiry or display identity of a token they were handed, never for access decisions.
func DecodeUnverified(raw string) (*Claims, error) {
	wire := &wireClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(raw), wire); err != nil {
		return nil, errors.Wrap(ErrTokenMalformed, err.Error())
	}
	claims, err := wire.normalize()
	if err != nil {
		return nil, errors.Wrap(ErrTokenMalformed, err.Error())
	}
	return claims, nil
}
