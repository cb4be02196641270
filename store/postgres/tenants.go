package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-fund-auth/tenants"
)

var _ tenants.Repo = (*TenantRepo)(nil)

type TenantRepo struct {
	db *sql.DB
}

func (r *TenantRepo) Upsert(ctx context.Context, org *tenants.Organization) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		insert into organizations (id, code, name, type, is_active)
		values ($1, $2, $3, $4, $5)
		on conflict (id) do update set
			code = excluded.code,
			name = excluded.name,
			type = excluded.type,
			is_active = excluded.is_active
	`, org.ID, org.Code, org.Name, string(org.Type), org.IsActive)
	return translate(err, "organization", org.Code)
}

func (r *TenantRepo) Get(ctx context.Context, organizationID string) (*tenants.Organization, error) {
	var (
		org     tenants.Organization
		orgType string
	)
	err := r.db.QueryRowContext(ctx, `
		select id, code, name, type, is_active, created_at
		from organizations
		where id = $1
	`, organizationID).Scan(&org.ID, &org.Code, &org.Name, &orgType, &org.IsActive, &org.CreatedAt)
	if err != nil {
		return nil, translate(err, "organization", organizationID)
	}
	org.Type = tenants.OrganizationType(orgType)
	return &org, nil
}

func (r *TenantRepo) List(ctx context.Context, offset, limit int) ([]*tenants.Organization, error) {
	off, lim := pageArgs(offset, limit)
	rows, err := r.db.QueryContext(ctx, `
		select id, code, name, type, is_active, created_at
		from organizations
		order by id
		offset $1 limit $2
	`, off, lim)
	if err != nil {
		return nil, fmt.Errorf("[TenantRepo List] %w", err)
	}
	defer rows.Close()

	var result []*tenants.Organization
	for rows.Next() {
		var (
			org     tenants.Organization
			orgType string
		)
		if err := rows.Scan(&org.ID, &org.Code, &org.Name, &orgType, &org.IsActive, &org.CreatedAt); err != nil {
			return nil, fmt.Errorf("[TenantRepo List] scan: %w", err)
		}
		org.Type = tenants.OrganizationType(orgType)
		result = append(result, &org)
	}
	return result, rows.Err()
}

func (r *TenantRepo) UpsertBranch(ctx context.Context, branch *tenants.Branch) error {
	if branch.ID == "" {
		branch.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		insert into branches (id, organization_id, code, name, is_active)
		values ($1, $2, $3, $4, $5)
		on conflict (organization_id, code) do update set
			name = excluded.name,
			is_active = excluded.is_active
	`, branch.ID, branch.OrganizationID, branch.Code, branch.Name, branch.IsActive)
	return translate(err, "branch", branch.Code)
}

func (r *TenantRepo) GetBranch(ctx context.Context, organizationID, code string) (*tenants.Branch, error) {
	var b tenants.Branch
	err := r.db.QueryRowContext(ctx, `
		select id, organization_id, code, name, is_active, created_at
		from branches
		where organization_id = $1 and code = $2
	`, organizationID, code).Scan(&b.ID, &b.OrganizationID, &b.Code, &b.Name, &b.IsActive, &b.CreatedAt)
	if err != nil {
		return nil, translate(err, "branch", organizationID+"/"+code)
	}
	return &b, nil
}
