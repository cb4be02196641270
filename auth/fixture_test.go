package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-fund-auth/audit"
	fakeauditrepo "github.com/jrsteele09/go-fund-auth/audit/repofake"
	"github.com/jrsteele09/go-fund-auth/auth"
	"github.com/jrsteele09/go-fund-auth/roles"
	fakerolerepo "github.com/jrsteele09/go-fund-auth/roles/repofake"
	"github.com/jrsteele09/go-fund-auth/token"
	"github.com/jrsteele09/go-fund-auth/users"
	fakeuserrepo "github.com/jrsteele09/go-fund-auth/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	accessSecret     = "access-secret"
	refreshSecret    = "refresh-secret"
	testUserID       = "user-1"
	testUsername     = "cashier.one"
	testUserPassword = "Passw0rdOne"
	testAdminID      = "admin-1"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// testFixture holds all test dependencies
type testFixture struct {
	ctx           context.Context
	clock         *clock
	userRepo      *fakeuserrepo.FakeUserRepo
	roleRepo      *fakerolerepo.FakeRoleRepo
	auditRepo     *fakeauditrepo.FakeAuditRepo
	denylist      *token.InMemoryDenylist
	tokens        *token.Manager
	authenticator *auth.Authenticator
	cashierRole   *roles.Role
	adminRole     *roles.Role
}

// setupTestFixture creates a new test fixture with a cashier principal and an admin principal
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		ctx:       context.Background(),
		clock:     &clock{now: time.Now().Truncate(time.Second)},
		userRepo:  fakeuserrepo.NewFakeUserRepo(),
		roleRepo:  fakerolerepo.NewFakeRoleRepo(),
		auditRepo: fakeauditrepo.NewFakeAuditRepo(),
		denylist:  token.NewInMemoryDenylist(),
	}

	var err error
	f.tokens, err = token.NewHMACManager(accessSecret, refreshSecret,
		token.WithTokenExpiry(15*time.Minute, 7*24*time.Hour),
		token.WithNowFunc(f.clock.Now),
	)
	require.NoError(t, err)

	f.authenticator, err = auth.NewAuthenticator(f.tokens, f.userRepo, f.roleRepo, auth.WithDenylist(f.denylist))
	require.NoError(t, err)

	f.cashierRole = &roles.Role{
		ID:          "role-cashier",
		Name:        roles.RoleCashier,
		DisplayName: "Cashier",
		IsActive:    true,
		Permissions: roles.PermissionSet{"transactions": {roles.ActionRead, roles.ActionCreate}},
	}
	f.adminRole = &roles.Role{
		ID:          "role-admin",
		Name:        roles.RoleAdmin,
		DisplayName: "Administrator",
		IsActive:    true,
		Permissions: roles.PermissionSet{"users": {roles.ActionRead, roles.ActionLockUnlock}},
	}
	require.NoError(t, f.roleRepo.Upsert(f.ctx, f.cashierRole))
	require.NoError(t, f.roleRepo.Upsert(f.ctx, f.adminRole))

	hash, err := users.HashPassword(testUserPassword)
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Upsert(f.ctx, &users.Principal{
		ID:             testUserID,
		Username:       testUsername,
		PasswordHash:   hash,
		FullName:       "Cashier One",
		RoleID:         f.cashierRole.ID,
		BranchCode:     "MAIN",
		OrganizationID: "org-1",
		IsActive:       true,
	}))
	require.NoError(t, f.userRepo.Upsert(f.ctx, &users.Principal{
		ID:       testAdminID,
		Username: "admin",
		RoleID:   f.adminRole.ID,
		IsActive: true,
	}))
	return f
}

func (f *testFixture) accessToken(t *testing.T, principalID string) string {
	t.Helper()
	principal, err := f.userRepo.GetByID(f.ctx, principalID)
	require.NoError(t, err)
	role, err := f.roleRepo.GetByID(f.ctx, principal.RoleID)
	require.NoError(t, err)
	raw, _, err := f.tokens.IssueAccessToken(principal, role)
	require.NoError(t, err)
	return raw
}

func (f *testFixture) identity(t *testing.T, principalID string) *auth.Identity {
	t.Helper()
	identity, err := f.authenticator.Authenticate(f.ctx, "Bearer "+f.accessToken(t, principalID))
	require.NoError(t, err)
	return identity
}

func (f *testFixture) recorder() *audit.Recorder {
	return audit.NewRecorder(f.auditRepo)
}
