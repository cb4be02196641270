package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-fund-auth/users"
)

var _ users.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *sql.DB
}

const userColumns = `id, username, password_hash, full_name, email, role_id, branch_code, organization_id,
	is_active, is_locked, failed_logins, last_login, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (*users.Principal, error) {
	var (
		p                  users.Principal
		email, branch, org sql.NullString
		lastLogin          sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Username, &p.PasswordHash, &p.FullName, &email, &p.RoleID, &branch, &org,
		&p.IsActive, &p.IsLocked, &p.FailedLogins, &lastLogin, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Email = email.String
	p.BranchCode = branch.String
	p.OrganizationID = org.String
	if lastLogin.Valid {
		p.LastLogin = lastLogin.Time
	}
	return &p, nil
}

func (r *UserRepo) Upsert(ctx context.Context, p *users.Principal) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		insert into users (id, username, password_hash, full_name, email, role_id, branch_code, organization_id,
			is_active, is_locked, failed_logins, last_login)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		on conflict (id) do update set
			username = excluded.username,
			password_hash = excluded.password_hash,
			full_name = excluded.full_name,
			email = excluded.email,
			role_id = excluded.role_id,
			branch_code = excluded.branch_code,
			organization_id = excluded.organization_id,
			is_active = excluded.is_active,
			is_locked = excluded.is_locked,
			failed_logins = excluded.failed_logins,
			last_login = excluded.last_login,
			updated_at = now()
	`, p.ID, p.Username, p.PasswordHash, p.FullName, nullIfEmpty(p.Email), p.RoleID, nullIfEmpty(p.BranchCode),
		nullIfEmpty(p.OrganizationID), p.IsActive, p.IsLocked, p.FailedLogins, nullTime(p.LastLogin))
	return translate(err, "user", p.Username)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*users.Principal, error) {
	p, err := scanPrincipal(r.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id))
	if err != nil {
		return nil, translate(err, "user", id)
	}
	return p, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*users.Principal, error) {
	p, err := scanPrincipal(r.db.QueryRowContext(ctx, `select `+userColumns+` from users where lower(username) = lower($1)`, username))
	if err != nil {
		return nil, translate(err, "user", username)
	}
	return p, nil
}

func (r *UserRepo) List(ctx context.Context, offset, limit int) ([]*users.Principal, error) {
	off, lim := pageArgs(offset, limit)
	rows, err := r.db.QueryContext(ctx, `select `+userColumns+` from users order by id offset $1 limit $2`, off, lim)
	if err != nil {
		return nil, fmt.Errorf("[UserRepo List] %w", err)
	}
	defer rows.Close()

	var result []*users.Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, fmt.Errorf("[UserRepo List] scan: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// SetLocked also clears the failed login counter when unlocking.
func (r *UserRepo) SetLocked(ctx context.Context, id string, locked bool) error {
	res, err := r.db.ExecContext(ctx, `
		update users
		set is_locked = $2,
			failed_logins = case when $2 then failed_logins else 0 end,
			updated_at = now()
		where id = $1
	`, id, locked)
	if err != nil {
		return translate(err, "user", id)
	}
	return requireRow(res, "user", id)
}

func (r *UserRepo) SetOrganization(ctx context.Context, id, organizationID string) error {
	res, err := r.db.ExecContext(ctx, `update users set organization_id = $2, updated_at = now() where id = $1`,
		id, nullIfEmpty(organizationID))
	if err != nil {
		return translate(err, "user", id)
	}
	return requireRow(res, "user", id)
}

// RecordLoginFailure increments atomically so concurrent failures are all counted.
func (r *UserRepo) RecordLoginFailure(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		update users set failed_logins = failed_logins + 1, updated_at = now()
		where id = $1
		returning failed_logins
	`, id).Scan(&attempts)
	if err != nil {
		return 0, translate(err, "user", id)
	}
	return attempts, nil
}

func (r *UserRepo) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `update users set failed_logins = 0, last_login = $2, updated_at = now() where id = $1`, id, at)
	if err != nil {
		return translate(err, "user", id)
	}
	return requireRow(res, "user", id)
}
