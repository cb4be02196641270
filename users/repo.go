package users

import (
	"context"
	"time"
)

// Repo is the credential store capability for principals. Lookups of missing records return an
// error wrapping internal/errors.ErrNotFound.
type Repo interface {
	Upsert(ctx context.Context, principal *Principal) error
	GetByID(ctx context.Context, id string) (*Principal, error)
	GetByUsername(ctx context.Context, username string) (*Principal, error)
	List(ctx context.Context, offset, limit int) ([]*Principal, error)
	SetLocked(ctx context.Context, id string, locked bool) error
	SetOrganization(ctx context.Context, id, organizationID string) error
	// RecordLoginFailure increments and returns the consecutive failed login count.
	RecordLoginFailure(ctx context.Context, id string) (int, error)
	// RecordLoginSuccess resets the failed login count and stamps the last login time.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
}
