package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jrsteele09/go-fund-auth/audit"
	apperrors "github.com/jrsteele09/go-fund-auth/internal/errors"
	"github.com/jrsteele09/go-fund-auth/roles"
	"github.com/jrsteele09/go-fund-auth/store/postgres"
	"github.com/jrsteele09/go-fund-auth/tenants"
	"github.com/jrsteele09/go-fund-auth/users"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "username", "password_hash", "full_name", "email", "role_id", "branch_code",
	"organization_id", "is_active", "is_locked", "failed_logins", "last_login", "created_at", "updated_at"}

func setupStore(t *testing.T) (*postgres.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return postgres.New(db), mock
}

func TestUserGetByID(t *testing.T) {
	store, mock := setupStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("select .* from users where id = \\$1").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			"user-1", "cashier.one", "hash", "Cashier One", nil, "role-cashier", "MAIN",
			"org-1", true, false, 2, nil, now, now))

	p, err := store.Users().GetByID(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "cashier.one", p.Username)
	require.Equal(t, "MAIN", p.BranchCode)
	require.Equal(t, "org-1", p.OrganizationID)
	require.Empty(t, p.Email)
	require.True(t, p.LastLogin.IsZero())
	require.Equal(t, 2, p.FailedLogins)
}

func TestUserNotFoundWrapsSentinel(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery("select .* from users where lower\\(username\\) = lower\\(\\$1\\)").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Users().GetByUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserUpsertConflict(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec("insert into users").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.Users().Upsert(context.Background(), &users.Principal{Username: "taken", RoleID: "r"})
	require.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestRecordLoginFailureReturnsCount(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery("update users set failed_logins = failed_logins \\+ 1").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"failed_logins"}).AddRow(3))

	n, err := store.Users().RecordLoginFailure(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestSetLockedMissingUser(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec("update users").
		WithArgs("ghost", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Users().SetLocked(context.Background(), "ghost", true)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRolePermissionsRoundTripThroughJSONB(t *testing.T) {
	store, mock := setupStore(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectExec("insert into roles").
		WithArgs(sqlmock.AnyArg(), "cashier", "Cashier", true, []byte(`{"transactions":["read","create"]}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	role := &roles.Role{Name: "cashier", DisplayName: "Cashier", IsActive: true,
		Permissions: roles.PermissionSet{"transactions": {"read", "create"}}}
	require.NoError(t, store.Roles().Upsert(ctx, role))
	require.NotEmpty(t, role.ID)

	mock.ExpectQuery("select .* from roles where lower\\(name\\) = lower\\(\\$1\\)").
		WithArgs("Cashier").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "display_name", "is_active", "permissions", "created_at", "updated_at"}).
			AddRow(role.ID, "cashier", "Cashier", true, []byte(`{"transactions":["read","create"]}`), now, now))

	got, err := store.Roles().GetByName(ctx, "Cashier")
	require.NoError(t, err)
	require.True(t, got.Permissions.Allows("transactions", "create"))
	require.False(t, got.Permissions.Allows("transactions", "delete"))
}

func TestTenantBranchLookup(t *testing.T) {
	store, mock := setupStore(t)
	ctx := context.Background()

	mock.ExpectQuery("select .* from branches").
		WithArgs("org-1", "EAST").
		WillReturnError(sql.ErrNoRows)
	_, err := store.Tenants().GetBranch(ctx, "org-1", "EAST")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	mock.ExpectQuery("select .* from organizations").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "type", "is_active", "created_at"}).
			AddRow("org-1", "MAIN", "Grace Chapel", "CHURCH", true, time.Now()))
	org, err := store.Tenants().Get(ctx, "org-1")
	require.NoError(t, err)
	require.Equal(t, tenants.TypeChurch, org.Type)
}

func TestAuditAppend(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec("insert into audit_logs").
		WithArgs("rec-1", "admin-1", "admin", audit.ActionUserLock, "users", "user-1",
			sqlmock.AnyArg(), sqlmock.AnyArg(), "10.0.0.1", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Audit().Append(context.Background(), &audit.Record{
		ID:        "rec-1",
		ActorID:   "admin-1",
		ActorName: "admin",
		Action:    audit.ActionUserLock,
		Table:     "users",
		RecordID:  "user-1",
		NewValues: audit.Snapshot(map[string]bool{"isLocked": true}),
		IPAddress: "10.0.0.1",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func TestMigrate(t *testing.T) {
	store, mock := setupStore(t)
	mock.MatchExpectationsInOrder(false)
	for range 7 {
		mock.ExpectExec("create (table|unique index|index) if not exists").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, store.Migrate(context.Background()))
}
