package audit

import "context"

// Repo is append-only; there is deliberately no update or delete.
type Repo interface {
	Append(ctx context.Context, rec *Record) error
	List(ctx context.Context, offset, limit int) ([]*Record, error)
}
