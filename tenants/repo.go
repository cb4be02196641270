package tenants

import "context"

type Repo interface {
	Upsert(ctx context.Context, org *Organization) error
	Get(ctx context.Context, organizationID string) (*Organization, error)
	List(ctx context.Context, offset, limit int) ([]*Organization, error)
	UpsertBranch(ctx context.Context, branch *Branch) error
	GetBranch(ctx context.Context, organizationID, code string) (*Branch, error)
}
