package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-fund-auth/roles"
	"github.com/jrsteele09/go-fund-auth/token"
	"github.com/jrsteele09/go-fund-auth/users"
	"github.com/stretchr/testify/require"
)

const (
	accessSecret  = "access-secret-for-tests"
	refreshSecret = "refresh-secret-for-tests"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func setupManager(t *testing.T) (*token.Manager, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)}
	m, err := token.NewHMACManager(accessSecret, refreshSecret,
		token.WithTokenExpiry(15*time.Minute, 7*24*time.Hour),
		token.WithNowFunc(c.Now),
	)
	require.NoError(t, err)
	return m, c
}

func testPrincipal() (*users.Principal, *roles.Role) {
	role := &roles.Role{
		ID:          "role-cashier",
		Name:        "cashier",
		IsActive:    true,
		Permissions: roles.PermissionSet{"transactions": {"read", "create"}, "receipts": {"read"}},
	}
	principal := &users.Principal{
		ID:         "user-42",
		Username:   "jdoe",
		RoleID:     role.ID,
		BranchCode: "HQ",
		IsActive:   true,
	}
	return principal, role
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m, c := setupManager(t)
	p, r := testPrincipal()

	raw, expiresAt, err := m.IssueAccessToken(p, r)
	require.NoError(t, err)
	require.True(t, c.now.Add(15*time.Minute).Equal(expiresAt))

	claims, err := m.VerifyAccess(raw)
	require.NoError(t, err)
	require.Equal(t, p.ID, claims.PrincipalID)
	require.Equal(t, p.Username, claims.Username)
	require.Equal(t, r.ID, claims.RoleID)
	require.Equal(t, r.Name, claims.RoleName)
	require.Equal(t, "HQ", claims.BranchCode)
	require.True(t, r.Permissions.Equal(claims.Permissions))
	require.True(t, c.now.Equal(claims.IssuedAt))
	require.NotEmpty(t, claims.TokenID)
}

func TestRefreshTokenIsMinimal(t *testing.T) {
	m, _ := setupManager(t)
	p, _ := testPrincipal()

	raw, err := m.IssueRefreshToken(p)
	require.NoError(t, err)

	claims, err := m.VerifyRefresh(raw)
	require.NoError(t, err)
	require.Equal(t, p.ID, claims.PrincipalID)
	require.Empty(t, claims.Username)
	require.Empty(t, claims.RoleName)
	require.Nil(t, claims.Permissions)

	again, err := m.IssueRefreshToken(p)
	require.NoError(t, err)
	require.NotEqual(t, raw, again, "every rotation must yield a new refresh token")
}

func TestExpiryMonotonicity(t *testing.T) {
	tests := []struct {
		name   string
		ttl    time.Duration
		issue  func(m *token.Manager) (string, error)
		verify func(m *token.Manager, raw string) (*token.Claims, error)
	}{
		{
			name: "access",
			ttl:  15 * time.Minute,
			issue: func(m *token.Manager) (string, error) {
				p, r := testPrincipal()
				raw, _, err := m.IssueAccessToken(p, r)
				return raw, err
			},
			verify: (*token.Manager).VerifyAccess,
		},
		{
			name: "refresh",
			ttl:  7 * 24 * time.Hour,
			issue: func(m *token.Manager) (string, error) {
				p, _ := testPrincipal()
				return m.IssueRefreshToken(p)
			},
			verify: (*token.Manager).VerifyRefresh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, c := setupManager(t)
			issued := c.now
			raw, err := tt.issue(m)
			require.NoError(t, err)

			c.now = issued.Add(tt.ttl - time.Second)
			_, err = tt.verify(m, raw)
			require.NoError(t, err)

			c.now = issued.Add(tt.ttl)
			_, err = tt.verify(m, raw)
			require.ErrorIs(t, err, token.ErrTokenExpired)

			c.now = issued.Add(tt.ttl + time.Second)
			_, err = tt.verify(m, raw)
			require.ErrorIs(t, err, token.ErrTokenExpired)
			require.NotErrorIs(t, err, token.ErrTokenMalformed)
		})
	}
}

func TestExpiryWithSubSecondClock(t *testing.T) {
	m, c := setupManager(t)
	c.now = c.now.Add(750 * time.Millisecond)
	p, r := testPrincipal()

	raw, expiresAt, err := m.IssueAccessToken(p, r)
	require.NoError(t, err)
	claims, err := m.VerifyAccess(raw)
	require.NoError(t, err)

	issued := c.now.Truncate(time.Second)
	require.True(t, issued.Equal(claims.IssuedAt))
	require.True(t, claims.ExpiresAt.Sub(claims.IssuedAt) == 15*time.Minute)
	require.True(t, expiresAt.Equal(claims.ExpiresAt))

	c.now = issued.Add(15*time.Minute - time.Millisecond)
	_, err = m.VerifyAccess(raw)
	require.NoError(t, err)

	c.now = issued.Add(15 * time.Minute)
	_, err = m.VerifyAccess(raw)
	require.ErrorIs(t, err, token.ErrTokenExpired)
}

func TestSecretIsolation(t *testing.T) {
	m, c := setupManager(t)
	p, r := testPrincipal()

	access, _, err := m.IssueAccessToken(p, r)
	require.NoError(t, err)
	refresh, err := m.IssueRefreshToken(p)
	require.NoError(t, err)

	_, err = m.VerifyAccess(refresh)
	require.ErrorIs(t, err, token.ErrTokenMalformed)

	_, err = m.VerifyRefresh(access)
	require.ErrorIs(t, err, token.ErrTokenMalformed)

	// Signature is checked before expiry, so a foreign expired token is still malformed.
	c.now = c.now.Add(30 * 24 * time.Hour)
	_, err = m.VerifyAccess(refresh)
	require.ErrorIs(t, err, token.ErrTokenMalformed)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m, _ := setupManager(t)

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := m.VerifyAccess(raw)
		require.ErrorIs(t, err, token.ErrTokenMalformed, raw)
	}
}

func TestVerifyRejectsUnexpectedAlgorithm(t *testing.T) {
	m, c := setupManager(t)
	claims := jwt.MapClaims{"id": "user-1", "exp": c.now.Add(time.Minute).Unix()}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.VerifyAccess(unsigned)
	require.ErrorIs(t, err, token.ErrTokenMalformed)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(accessSecret))
	require.NoError(t, err)
	_, err = m.VerifyAccess(hs512)
	require.ErrorIs(t, err, token.ErrTokenMalformed)
}

func TestVerifyRequiresExpiry(t *testing.T) {
	m, _ := setupManager(t)
	raw, err := token.NewHMACSigner(accessSecret).Sign(jwt.MapClaims{"id": "user-1"})
	require.NoError(t, err)

	_, err = m.VerifyAccess(raw)
	require.ErrorIs(t, err, token.ErrTokenMalformed)
}

func TestLegacyClaimShapes(t *testing.T) {
	m, c := setupManager(t)
	signer := token.NewHMACSigner(accessSecret)
	exp := c.now.Add(time.Minute).Unix()

	t.Run("userId and role name", func(t *testing.T) {
		raw, err := signer.Sign(jwt.MapClaims{
			"userId":   7,
			"username": "legacy",
			"role":     "SUPERVISOR",
			"exp":      exp,
		})
		require.NoError(t, err)

		claims, err := m.VerifyAccess(raw)
		require.NoError(t, err)
		require.Equal(t, "7", claims.PrincipalID)
		require.Equal(t, "SUPERVISOR", claims.RoleName)
	})

	t.Run("role object", func(t *testing.T) {
		raw, err := signer.Sign(jwt.MapClaims{
			"id":   "user-9",
			"role": map[string]any{"id": 3, "name": "cashier"},
			"exp":  exp,
		})
		require.NoError(t, err)

		claims, err := m.VerifyAccess(raw)
		require.NoError(t, err)
		require.Equal(t, "user-9", claims.PrincipalID)
		require.Equal(t, "3", claims.RoleID)
		require.Equal(t, "cashier", claims.RoleName)
	})

	t.Run("canonical fields win", func(t *testing.T) {
		raw, err := signer.Sign(jwt.MapClaims{
			"id":       "user-1",
			"userId":   "user-2",
			"roleName": "admin",
			"role":     "cashier",
			"exp":      exp,
		})
		require.NoError(t, err)

		claims, err := m.VerifyAccess(raw)
		require.NoError(t, err)
		require.Equal(t, "user-1", claims.PrincipalID)
		require.Equal(t, "admin", claims.RoleName)
	})

	t.Run("missing principal", func(t *testing.T) {
		raw, err := signer.Sign(jwt.MapClaims{"username": "ghost", "exp": exp})
		require.NoError(t, err)

		_, err = m.VerifyAccess(raw)
		require.ErrorIs(t, err, token.ErrTokenMalformed)
	})
}

func TestDecodeUnverified(t *testing.T) {
	m, c := setupManager(t)
	p, r := testPrincipal()
	raw, _, err := m.IssueAccessToken(p, r)
	require.NoError(t, err)

	claims, err := token.DecodeUnverified(raw)
	require.NoError(t, err)
	require.Equal(t, p.ID, claims.PrincipalID)
	require.True(t, c.now.Add(15*time.Minute).Equal(claims.ExpiresAt))

	_, err = token.DecodeUnverified("garbage")
	require.ErrorIs(t, err, token.ErrTokenMalformed)
}

func TestNewHMACManagerRejectsSharedSecret(t *testing.T) {
	_, err := token.NewHMACManager("same", "same")
	require.Error(t, err)

	_, err = token.NewHMACManager(" same", "same\n")
	require.Error(t, err)

	_, err = token.NewHMACManager("", "refresh")
	require.Error(t, err)
}
