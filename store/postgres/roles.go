package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-fund-auth/roles"
)

var _ roles.Repo = (*RoleRepo)(nil)

type RoleRepo struct {
	db *sql.DB
}

const roleColumns = `id, name, display_name, is_active, permissions, created_at, updated_at`

func scanRole(row rowScanner) (*roles.Role, error) {
	var (
		role roles.Role
		raw  []byte
	)
	if err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.IsActive, &raw, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, err
	}
	role.Permissions = roles.PermissionSet{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &role.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions for role %s: %w", role.ID, err)
		}
	}
	return &role, nil
}

func (r *RoleRepo) Upsert(ctx context.Context, role *roles.Role) error {
	if role.ID == "" {
		role.ID = uuid.New().String()
	}
	perms := role.Permissions
	if perms == nil {
		perms = roles.PermissionSet{}
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("[RoleRepo Upsert] marshal permissions: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		insert into roles (id, name, display_name, is_active, permissions)
		values ($1, $2, $3, $4, $5)
		on conflict (id) do update set
			name = excluded.name,
			display_name = excluded.display_name,
			is_active = excluded.is_active,
			permissions = excluded.permissions,
			updated_at = now()
	`, role.ID, role.Name, role.DisplayName, role.IsActive, raw)
	return translate(err, "role", role.Name)
}

func (r *RoleRepo) GetByID(ctx context.Context, id string) (*roles.Role, error) {
	role, err := scanRole(r.db.QueryRowContext(ctx, `select `+roleColumns+` from roles where id = $1`, id))
	if err != nil {
		return nil, translate(err, "role", id)
	}
	return role, nil
}

func (r *RoleRepo) GetByName(ctx context.Context, name string) (*roles.Role, error) {
	role, err := scanRole(r.db.QueryRowContext(ctx, `select `+roleColumns+` from roles where lower(name) = lower($1)`, name))
	if err != nil {
		return nil, translate(err, "role", name)
	}
	return role, nil
}

func (r *RoleRepo) List(ctx context.Context) ([]*roles.Role, error) {
	rows, err := r.db.QueryContext(ctx, `select `+roleColumns+` from roles order by name`)
	if err != nil {
		return nil, fmt.Errorf("[RoleRepo List] %w", err)
	}
	defer rows.Close()

	var result []*roles.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("[RoleRepo List] scan: %w", err)
		}
		result = append(result, role)
	}
	return result, rows.Err()
}
