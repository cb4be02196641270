package tenancy

import (
	"context"

	"github.com/jrsteele09/go-fund-auth/tenants"
)

// TenantContext is the organization and optional branch a request operates in. It is derived
// fresh on every request and never cached, since affiliation can change between requests.
type TenantContext struct {
	Organization *tenants.Organization `json:"organization"`
	Branch       *tenants.Branch       `json:"branch,omitempty"`
}

type ctxKey string

const tenantKey ctxKey = "tenant_context"

func ContextWithTenant(ctx context.Context, tc *TenantContext) context.Context {
	return context.WithValue(ctx, tenantKey, tc)
}

func TenantFromContext(ctx context.Context) *TenantContext {
	if ctx == nil {
		return nil
	}
	tc, _ := ctx.Value(tenantKey).(*TenantContext)
	return tc
}
