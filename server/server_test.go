package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	fakeauditrepo "github.com/jrsteele09/go-fund-auth/audit/repofake"
	"github.com/jrsteele09/go-fund-auth/auth"
	"github.com/jrsteele09/go-fund-auth/internal/config"
	"github.com/jrsteele09/go-fund-auth/roles"
	fakerolerepo "github.com/jrsteele09/go-fund-auth/roles/repofake"
	"github.com/jrsteele09/go-fund-auth/server"
	"github.com/jrsteele09/go-fund-auth/tenancy"
	"github.com/jrsteele09/go-fund-auth/tenants"
	tenantrepofakes "github.com/jrsteele09/go-fund-auth/tenants/repofakes"
	"github.com/jrsteele09/go-fund-auth/token"
	"github.com/jrsteele09/go-fund-auth/users"
	fakeuserrepo "github.com/jrsteele09/go-fund-auth/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	cashierPassword = "Passw0rdOne"
	adminPassword   = "Adm1nPassword"
)

type testFixture struct {
	ctx       context.Context
	userRepo  *fakeuserrepo.FakeUserRepo
	roleRepo  *fakerolerepo.FakeRoleRepo
	auditRepo *fakeauditrepo.FakeAuditRepo
	server    *server.Server
	handler   http.Handler
}

func setupTestFixture(t *testing.T, env map[string]string) *testFixture {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("JWT_ACCESS_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
	t.Setenv("CORS_ORIGINS", "https://app.example.org")
	for k, v := range env {
		t.Setenv(k, v)
	}

	f := &testFixture{
		ctx:       context.Background(),
		userRepo:  fakeuserrepo.NewFakeUserRepo(),
		roleRepo:  fakerolerepo.NewFakeRoleRepo(),
		auditRepo: fakeauditrepo.NewFakeAuditRepo(),
	}
	tenantRepo := tenantrepofakes.NewFakeTenantRepo()

	cashier := &roles.Role{ID: "role-cashier", Name: roles.RoleCashier, IsActive: true,
		Permissions: roles.PermissionSet{"transactions": {roles.ActionRead}}}
	admin := &roles.Role{ID: "role-admin", Name: roles.RoleAdmin, IsActive: true}
	require.NoError(t, f.roleRepo.Upsert(f.ctx, cashier))
	require.NoError(t, f.roleRepo.Upsert(f.ctx, admin))

	require.NoError(t, tenantRepo.Upsert(f.ctx, &tenants.Organization{ID: "org-1", Code: "MAIN", Name: "Grace Chapel", Type: tenants.TypeChurch, IsActive: true}))
	require.NoError(t, tenantRepo.Upsert(f.ctx, &tenants.Organization{ID: "org-2", Code: "ACAD", Name: "Hillside Academy", Type: tenants.TypeSchool, IsActive: true}))

	f.addUser(t, "user-1", "cashier.one", cashierPassword, cashier.ID, "org-1")
	f.addUser(t, "admin-1", "admin", adminPassword, admin.ID, "org-1")

	cfg := config.New()
	var err error
	f.server, err = server.New(cfg, server.Repos{
		Users:   f.userRepo,
		Roles:   f.roleRepo,
		Tenants: tenantRepo,
		Audit:   f.auditRepo,
	}, server.WithDenylist(token.NewInMemoryDenylist()))
	require.NoError(t, err)
	f.handler = f.server.Handler()
	return f
}

func (f *testFixture) addUser(t *testing.T, id, username, password, roleID, orgID string) {
	t.Helper()
	hash, err := users.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Upsert(f.ctx, &users.Principal{
		ID:             id,
		Username:       username,
		PasswordHash:   hash,
		RoleID:         roleID,
		OrganizationID: orgID,
		IsActive:       true,
	}))
}

func (f *testFixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *testFixture) login(t *testing.T, username, password string) *auth.Session {
	t.Helper()
	rec := f.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var session auth.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&session))
	return &session
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestLoginAndMe(t *testing.T) {
	f := setupTestFixture(t, nil)

	session := f.login(t, "cashier.one", cashierPassword)
	require.NotEmpty(t, session.AccessToken)
	require.NotEmpty(t, session.RefreshToken)
	require.Equal(t, "user-1", session.ID)
	require.Equal(t, roles.RoleCashier, session.RoleName)

	rec := f.do(t, http.MethodGet, server.RouteAuthMe, session.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile auth.Profile
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&profile))
	require.Equal(t, "cashier.one", profile.Username)
	require.True(t, profile.Permissions.Allows("transactions", roles.ActionRead))
}

func TestLoginRejections(t *testing.T) {
	f := setupTestFixture(t, nil)

	rec := f.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{"username": "cashier.one", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "AuthError", decodeError(t, rec).Kind)

	rec = f.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{"username": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, bytes.NewBufferString("{not json"))
	raw := httptest.NewRecorder()
	f.handler.ServeHTTP(raw, req)
	require.Equal(t, http.StatusBadRequest, raw.Code)
	require.Equal(t, "invalid request body", decodeError(t, raw).Error)
}

func TestMissingAuthorizationHeader(t *testing.T) {
	f := setupTestFixture(t, nil)

	rec := f.do(t, http.MethodGet, server.RouteAuthMe, "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeError(t, rec)
	require.Equal(t, "Authorization token missing or malformed.", body.Error)
	require.Equal(t, "AuthError", body.Kind)

	rec = f.do(t, http.MethodGet, server.RouteAuthMe, "not-a-jwt", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "invalid token", decodeError(t, rec).Error)
}

func TestRefreshAndLogout(t *testing.T) {
	f := setupTestFixture(t, nil)
	session := f.login(t, "cashier.one", cashierPassword)

	rec := f.do(t, http.MethodPost, server.RouteRefreshToken, "", map[string]string{"refreshToken": session.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed auth.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&refreshed))
	require.NotEmpty(t, refreshed.AccessToken)

	rec = f.do(t, http.MethodPost, server.RouteRefreshToken, "", map[string]string{"refreshToken": session.AccessToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, server.RouteLogout, "", map[string]string{"refreshToken": "garbage"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, server.RouteLogout, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUserLockRequiresPermissionAndRevokesAccess(t *testing.T) {
	f := setupTestFixture(t, nil)
	cashier := f.login(t, "cashier.one", cashierPassword)
	admin := f.login(t, "admin", adminPassword)

	rec := f.do(t, http.MethodPatch, "/users/admin-1/lock", cashier.AccessToken, map[string]bool{"locked": true})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "no permissions found for module users", decodeError(t, rec).Error)

	rec = f.do(t, http.MethodPatch, "/users/user-1/lock", admin.AccessToken, map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/users/user-1/lock", admin.AccessToken, map[string]bool{"locked": true})
	require.Equal(t, http.StatusOK, rec.Code)
	var principal users.Principal
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&principal))
	require.True(t, principal.IsLocked)

	rec = f.do(t, http.MethodGet, server.RouteAuthMe, cashier.AccessToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Len(t, f.auditRepo.Records(), 1)

	rec = f.do(t, http.MethodPatch, "/users/admin-1/lock", admin.AccessToken, map[string]bool{"locked": true})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrganizationRoutes(t *testing.T) {
	f := setupTestFixture(t, nil)
	session := f.login(t, "cashier.one", cashierPassword)

	rec := f.do(t, http.MethodGet, server.RouteCurrentOrganization, session.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tc tenancy.TenantContext
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tc))
	require.Equal(t, "org-1", tc.Organization.ID)

	rec = f.do(t, http.MethodPost, server.RouteSwitchOrganization, session.AccessToken, map[string]string{"organizationId": "org-2"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, server.RouteCurrentOrganization, session.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tc))
	require.Equal(t, tenants.TypeSchool, tc.Organization.Type)

	rec = f.do(t, http.MethodPost, server.RouteSwitchOrganization, session.AccessToken, map[string]string{"organizationId": "org-404"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "organization not found", decodeError(t, rec).Error)
}

func TestLoginRateLimit(t *testing.T) {
	f := setupTestFixture(t, map[string]string{"LOGIN_RATE_PER_MINUTE": "2"})

	f.login(t, "cashier.one", cashierPassword)
	f.login(t, "cashier.one", cashierPassword)
	rec := f.do(t, http.MethodPost, server.RouteAuthLogin, "", map[string]string{"username": "cashier.one", "password": cashierPassword})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestCorsPreflight(t *testing.T) {
	f := setupTestFixture(t, nil)

	req := httptest.NewRequest(http.MethodOptions, server.RouteAuthMe, nil)
	req.Header.Set("Origin", "https://app.example.org")
	rec := httptest.NewRecorder()
	server.ChainMiddleware(func(http.ResponseWriter, *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}, f.server.CorsMiddleware)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "https://app.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRecoverMiddleware(t *testing.T) {
	f := setupTestFixture(t, nil)

	handler := server.ChainMiddleware(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}, f.server.RecoverMiddleware)
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "internal server error", decodeError(t, rec).Error)
}

func TestOrganizationTypeGuard(t *testing.T) {
	f := setupTestFixture(t, nil)
	session := f.login(t, "cashier.one", cashierPassword)

	reached := false
	handler := server.ChainMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}, f.server.RequireAuth(), f.server.ResolveOrganization(), f.server.RequireOrganizationType(tenants.TypeSchool))

	req := httptest.NewRequest(http.MethodGet, "/fees", nil)
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.False(t, reached)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "feature only available for SCHOOL", decodeError(t, rec).Error)
}

func TestHealthz(t *testing.T) {
	f := setupTestFixture(t, nil)
	rec := f.do(t, http.MethodGet, server.RouteHealth, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRejectsSharedSecrets(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "same")
	t.Setenv("JWT_REFRESH_SECRET", "same")
	_, err := server.New(config.New(), server.Repos{})
	require.Error(t, err)
}

func (f *testFixture) loginFrom(t *testing.T, remoteAddr, forwardedFor string) int {
	t.Helper()
	body := bytes.NewBufferString(`{"username":"cashier.one","password":"` + cashierPassword + `"}`)
	req := httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, body)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestLoginRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	f := setupTestFixture(t, map[string]string{"LOGIN_RATE_PER_MINUTE": "2", "TRUSTED_PROXIES": ""})

	throttled := 0
	for i := range 6 {
		forwarded := fmt.Sprintf("198.51.100.%d", i+1)
		if f.loginFrom(t, "203.0.113.9:5000", forwarded) == http.StatusTooManyRequests {
			throttled++
		}
	}
	require.Equal(t, 4, throttled)
}

func TestLoginRateLimitBehindTrustedProxy(t *testing.T) {
	f := setupTestFixture(t, map[string]string{"LOGIN_RATE_PER_MINUTE": "2", "TRUSTED_PROXIES": "10.0.0.0/8"})
	proxy := "10.0.0.5:443"

	require.Equal(t, http.StatusOK, f.loginFrom(t, proxy, "198.51.100.1"))
	require.Equal(t, http.StatusOK, f.loginFrom(t, proxy, "198.51.100.1"))
	require.Equal(t, http.StatusTooManyRequests, f.loginFrom(t, proxy, "198.51.100.1"))

	// A different client behind the same proxy has its own bucket.
	require.Equal(t, http.StatusOK, f.loginFrom(t, proxy, "198.51.100.2"))

	// A client-supplied left-most entry cannot pick the bucket.
	require.Equal(t, http.StatusTooManyRequests, f.loginFrom(t, proxy, "192.0.2.77, 198.51.100.1"))
}

func TestAuditRecordsPeerAddress(t *testing.T) {
	f := setupTestFixture(t, nil)
	admin := f.login(t, "admin", adminPassword)

	req := httptest.NewRequest(http.MethodPatch, "/users/user-1/lock", bytes.NewBufferString(`{"locked":true}`))
	req.RemoteAddr = "203.0.113.9:5000"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	req.Header.Set("Authorization", "Bearer "+admin.AccessToken)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	records := f.auditRepo.Records()
	require.Len(t, records, 1)
	require.Equal(t, "203.0.113.9", records[0].IPAddress)
}

func TestRequireRole(t *testing.T) {
	f := setupTestFixture(t, nil)
	cashier := f.login(t, "cashier.one", cashierPassword)
	admin := f.login(t, "admin", adminPassword)

	handler := server.ChainMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, f.server.RequireAuth(), f.server.RequireRole("Admin", "supervisor"))

	serve := func(bearer string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec
	}

	rec := serve(cashier.AccessToken)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "insufficient permissions", decodeError(t, rec).Error)

	require.Equal(t, http.StatusNoContent, serve(admin.AccessToken).Code)
	require.Equal(t, http.StatusUnauthorized, serve("").Code)

	// Without RequireAuth ahead of it the guard reports the missing identity.
	rec = httptest.NewRecorder()
	server.ChainMiddleware(func(http.ResponseWriter, *http.Request) {
		t.Fatal("guard must not pass without an identity")
	}, f.server.RequireRole("admin"))(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "authentication required", decodeError(t, rec).Error)
}
