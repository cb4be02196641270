package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-fund-auth/internal/errors"
	"github.com/jrsteele09/go-fund-auth/roles"
	"github.com/jrsteele09/go-fund-auth/tenants"
	"github.com/jrsteele09/go-fund-auth/users"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAdminUsername    = "admin"
	DefaultOrganizationCode = "MAIN"
	DefaultOrganizationName = "Main Organization"
	DefaultBranchCode       = "HQ"
)

// Repos holds the stores that first-boot seeding writes to
type Repos struct {
	Users   users.Repo
	Roles   roles.Repo
	Tenants tenants.Repo
}

type Options struct {
	AdminUsername    string
	AdminPassword    string // generated when empty
	OrganizationCode string
	OrganizationName string
	OrganizationType tenants.OrganizationType
}

// Result reports what EnsureDefaults found or created. GeneratedPassword is only set when the
// admin principal was created with a random password.
type Result struct {
	Roles             map[string]*roles.Role
	Organization      *tenants.Organization
	Admin             *users.Principal
	CreatedRoles      []string
	GeneratedPassword string
}

func (o *Options) applyDefaults() {
	if strings.TrimSpace(o.AdminUsername) == "" {
		o.AdminUsername = DefaultAdminUsername
	}
	if strings.TrimSpace(o.OrganizationCode) == "" {
		o.OrganizationCode = DefaultOrganizationCode
	}
	if strings.TrimSpace(o.OrganizationName) == "" {
		o.OrganizationName = DefaultOrganizationName
	}
	if o.OrganizationType == "" {
		o.OrganizationType = tenants.TypeChurch
	}
}

// EnsureDefaults seeds the admin, supervisor and cashier roles, a default organization with a
// head office branch, and an active admin principal. Existing records are left untouched, so it
// is safe to run on every start.
func EnsureDefaults(ctx context.Context, repos Repos, opts Options) (*Result, error) {
	opts.applyDefaults()
	result := &Result{Roles: make(map[string]*roles.Role)}

	if err := ensureRoles(ctx, repos.Roles, result); err != nil {
		return nil, err
	}

	org, err := ensureOrganization(ctx, repos.Tenants, opts)
	if err != nil {
		return nil, err
	}
	result.Organization = org

	admin, password, err := ensureAdmin(ctx, repos.Users, result.Roles[roles.RoleAdmin], org, opts)
	if err != nil {
		return nil, err
	}
	result.Admin = admin
	result.GeneratedPassword = password

	if len(result.CreatedRoles) > 0 || password != "" {
		log.Info().
			Strs("roles_created", result.CreatedRoles).
			Str("organization_id", org.ID).
			Str("admin", admin.Username).
			Msg("bootstrap complete")
	} else {
		log.Info().Msg("bootstrap: system already configured")
	}
	return result, nil
}

func ensureRoles(ctx context.Context, repo roles.Repo, result *Result) error {
	for _, role := range roles.DefaultRoles() {
		existing, err := repo.GetByName(ctx, role.Name)
		if err == nil {
			result.Roles[role.Name] = existing
			continue
		}
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("[bootstrap ensureRoles] failed to get role %s: %w", role.Name, err)
		}
		role.CreatedAt = time.Now().UTC()
		role.UpdatedAt = role.CreatedAt
		if err := repo.Upsert(ctx, role); err != nil {
			return fmt.Errorf("[bootstrap ensureRoles] failed to create role %s: %w", role.Name, err)
		}
		result.Roles[role.Name] = role
		result.CreatedRoles = append(result.CreatedRoles, role.Name)
	}
	return nil
}

func ensureOrganization(ctx context.Context, repo tenants.Repo, opts Options) (*tenants.Organization, error) {
	const pageSize = 100
	var org *tenants.Organization
	for offset := 0; org == nil; offset += pageSize {
		page, err := repo.List(ctx, offset, pageSize)
		if err != nil {
			return nil, fmt.Errorf("[bootstrap ensureOrganization] failed to list organizations: %w", err)
		}
		for _, o := range page {
			if strings.EqualFold(o.Code, opts.OrganizationCode) {
				org = o
				break
			}
		}
		if len(page) < pageSize {
			break
		}
	}

	if org == nil {
		org = &tenants.Organization{
			Code:      opts.OrganizationCode,
			Name:      opts.OrganizationName,
			Type:      opts.OrganizationType,
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.Upsert(ctx, org); err != nil {
			return nil, fmt.Errorf("[bootstrap ensureOrganization] failed to create organization: %w", err)
		}
	}

	if _, err := repo.GetBranch(ctx, org.ID, DefaultBranchCode); err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("[bootstrap ensureOrganization] failed to get branch: %w", err)
		}
		branch := &tenants.Branch{
			OrganizationID: org.ID,
			Code:           DefaultBranchCode,
			Name:           "Head Office",
			IsActive:       true,
			CreatedAt:      time.Now().UTC(),
		}
		if err := repo.UpsertBranch(ctx, branch); err != nil {
			return nil, fmt.Errorf("[bootstrap ensureOrganization] failed to create branch: %w", err)
		}
	}
	return org, nil
}

func ensureAdmin(ctx context.Context, repo users.Repo, adminRole *roles.Role, org *tenants.Organization, opts Options) (*users.Principal, string, error) {
	existing, err := repo.GetByUsername(ctx, opts.AdminUsername)
	if err == nil {
		return existing, "", nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, "", fmt.Errorf("[bootstrap ensureAdmin] failed to get admin: %w", err)
	}
	if adminRole == nil {
		return nil, "", fmt.Errorf("[bootstrap ensureAdmin] admin role missing")
	}

	password := opts.AdminPassword
	generated := ""
	if password == "" {
		passwordBytes := make([]byte, 16)
		if _, err := rand.Read(passwordBytes); err != nil {
			return nil, "", fmt.Errorf("[bootstrap ensureAdmin] failed to generate password: %w", err)
		}
		password = base64.URLEncoding.EncodeToString(passwordBytes)
		generated = password
	} else if err := users.ValidatePasswordStrength(password); err != nil {
		return nil, "", fmt.Errorf("[bootstrap ensureAdmin] admin password rejected: %w", err)
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("[bootstrap ensureAdmin] failed to hash password: %w", err)
	}
	now := time.Now().UTC()
	admin := &users.Principal{
		Username:       opts.AdminUsername,
		PasswordHash:   hash,
		FullName:       "System Administrator",
		RoleID:         adminRole.ID,
		BranchCode:     DefaultBranchCode,
		OrganizationID: org.ID,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.Upsert(ctx, admin); err != nil {
		return nil, "", fmt.Errorf("[bootstrap ensureAdmin] failed to create admin: %w", err)
	}
	return admin, generated, nil
}
