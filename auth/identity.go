package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/go-fund-auth/roles"
)

// Identity is the request scoped, hydrated view of the authenticated principal. Role is the live
// record loaded from the store, not the snapshot embedded in the access token.
type Identity struct {
	PrincipalID    string      `json:"id"`
	Username       string      `json:"username"`
	FullName       string      `json:"fullName,omitempty"`
	Email          string      `json:"email,omitempty"`
	RoleID         string      `json:"roleId"`
	BranchCode     string      `json:"branchCode,omitempty"`
	OrganizationID string      `json:"organizationId,omitempty"`
	Role           *roles.Role `json:"role"`
	TokenIssuedAt  time.Time   `json:"-"`
}

// Permissions returns the live permission set, or nil when no role is attached.
func (i *Identity) Permissions() roles.PermissionSet {
	if i == nil || i.Role == nil {
		return nil
	}
	return i.Role.Permissions
}

type ctxKey string

const identityKey ctxKey = "auth_identity"

func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity attached by the authentication middleware, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	if ctx == nil {
		return nil
	}
	identity, _ := ctx.Value(identityKey).(*Identity)
	return identity
}
