package tenancy

import (
	"context"
	"slices"
	"strings"

	"github.com/jrsteele09/go-fund-auth/audit"
	"github.com/jrsteele09/go-fund-auth/auth"
	apperrors "github.com/jrsteele09/go-fund-auth/internal/errors"
	"github.com/jrsteele09/go-fund-auth/tenants"
	"github.com/jrsteele09/go-fund-auth/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SwitchPolicy decides whether identity may move into target. It runs after the existence check.
type SwitchPolicy func(ctx context.Context, identity *auth.Identity, target *tenants.Organization) error

// AllowAnyOrganization permits switching into any existing organization.
func AllowAnyOrganization(context.Context, *auth.Identity, *tenants.Organization) error {
	return nil
}

// Resolver derives the tenant context of a request and moves principals between organizations.
type Resolver struct {
	users    users.Repo
	tenants  tenants.Repo
	recorder *audit.Recorder
	policy   SwitchPolicy
}

type ResolverOption func(*Resolver)

func WithSwitchPolicy(policy SwitchPolicy) ResolverOption {
	return func(r *Resolver) {
		if policy != nil {
			r.policy = policy
		}
	}
}

func WithAuditRecorder(recorder *audit.Recorder) ResolverOption {
	return func(r *Resolver) {
		r.recorder = recorder
	}
}

func NewResolver(userRepo users.Repo, tenantRepo tenants.Repo, options ...ResolverOption) (*Resolver, error) {
	if userRepo == nil || tenantRepo == nil {
		return nil, errors.New("[tenancy.NewResolver] user and tenant repos are required")
	}
	r := &Resolver{users: userRepo, tenants: tenantRepo, policy: AllowAnyOrganization}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// ResolveOrganization loads the organization the principal currently belongs to, plus its branch
// when the principal has one, and copies the organization id onto identity. A branch code that
// names no branch of the organization is NotFound, and an inactive branch is a Validation error.
func (r *Resolver) ResolveOrganization(ctx context.Context, identity *auth.Identity) (*TenantContext, error) {
	if identity == nil {
		return nil, auth.ErrAuthenticationRequired
	}

	principal, err := r.users.GetByID(ctx, identity.PrincipalID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, errors.Wrap(err, "Resolver.ResolveOrganization GetByID")
	}
	if principal.OrganizationID == "" {
		return nil, apperrors.Validation("user not associated with any organization")
	}

	org, err := r.tenants.Get(ctx, principal.OrganizationID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("organization not found")
		}
		return nil, errors.Wrap(err, "Resolver.ResolveOrganization Get")
	}
	if !org.IsActive {
		return nil, apperrors.Validation("organization is not active")
	}

	tc := &TenantContext{Organization: org}
	if principal.BranchCode != "" {
		branch, err := r.tenants.GetBranch(ctx, org.ID, principal.BranchCode)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NotFound("branch not found")
			}
			return nil, errors.Wrap(err, "Resolver.ResolveOrganization GetBranch")
		}
		if !branch.IsActive {
			return nil, apperrors.Validation("branch is not active")
		}
		tc.Branch = branch
	}

	identity.OrganizationID = org.ID
	return tc, nil
}

// RequireOrganizationType passes when the resolved organization is one of allowed.
func RequireOrganizationType(tc *TenantContext, allowed ...tenants.OrganizationType) error {
	if tc == nil || tc.Organization == nil {
		return apperrors.Validation("organization context required")
	}
	if slices.Contains(allowed, tc.Organization.Type) {
		return nil
	}
	names := make([]string, 0, len(allowed))
	for _, t := range allowed {
		names = append(names, string(t))
	}
	return apperrors.Forbidden("feature only available for %s", strings.Join(names, " or "))
}

// SwitchOrganization moves the principal behind identity into targetOrgID. Only existence is
// checked unless a stricter SwitchPolicy is configured.
func (r *Resolver) SwitchOrganization(ctx context.Context, identity *auth.Identity, targetOrgID string) (*tenants.Organization, error) {
	if identity == nil {
		return nil, auth.ErrAuthenticationRequired
	}
	targetOrgID = strings.TrimSpace(targetOrgID)
	if targetOrgID == "" {
		return nil, apperrors.Validation("organization id is required")
	}

	target, err := r.tenants.Get(ctx, targetOrgID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("organization not found")
		}
		return nil, errors.Wrap(err, "Resolver.SwitchOrganization Get")
	}
	if err := r.policy(ctx, identity, target); err != nil {
		return nil, err
	}

	principal, err := r.users.GetByID(ctx, identity.PrincipalID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, errors.Wrap(err, "Resolver.SwitchOrganization GetByID")
	}
	previous := principal.OrganizationID

	// A branch code only means something inside its own organization.
	branchCode, err := r.branchIn(ctx, target.ID, principal.BranchCode)
	if err != nil {
		return nil, err
	}
	if branchCode == principal.BranchCode {
		err = r.users.SetOrganization(ctx, principal.ID, target.ID)
	} else {
		principal.OrganizationID = target.ID
		principal.BranchCode = branchCode
		err = r.users.Upsert(ctx, principal)
	}
	if err != nil {
		return nil, errors.Wrap(err, "Resolver.SwitchOrganization SetOrganization")
	}
	identity.OrganizationID = target.ID
	identity.BranchCode = branchCode

	r.recorder.Record(ctx, audit.Record{
		ActorID:   identity.PrincipalID,
		ActorName: identity.Username,
		Action:    audit.ActionOrganizationSwitch,
		Table:     "users",
		RecordID:  principal.ID,
		OldValues: audit.Snapshot(map[string]string{"organizationId": previous}),
		NewValues: audit.Snapshot(map[string]string{"organizationId": target.ID, "branchCode": branchCode}),
	})
	log.Info().
		Str("principal_id", principal.ID).
		Str("from", previous).
		Str("to", target.ID).
		Msg("organization switched")
	return target, nil
}

// branchIn returns code when the branch exists in organizationID, and "" when it does not.
func (r *Resolver) branchIn(ctx context.Context, organizationID, code string) (string, error) {
	if code == "" {
		return "", nil
	}
	if _, err := r.tenants.GetBranch(ctx, organizationID, code); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", nil
		}
		return "", errors.Wrap(err, "Resolver.SwitchOrganization GetBranch")
	}
	return code, nil
}
