package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jrsteele09/go-fund-auth/audit"
)

var _ audit.Repo = (*AuditRepo)(nil)

// AuditRepo only ever inserts and reads.
type AuditRepo struct {
	db *sql.DB
}

func (r *AuditRepo) Append(ctx context.Context, rec *audit.Record) error {
	_, err := r.db.ExecContext(ctx, `
		insert into audit_logs (id, actor_id, actor_name, action, table_name, record_id, old_values, new_values,
			ip_address, user_agent, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.ID, rec.ActorID, rec.ActorName, rec.Action, rec.Table, rec.RecordID, nullJSON(rec.OldValues),
		nullJSON(rec.NewValues), nullIfEmpty(rec.IPAddress), nullIfEmpty(rec.UserAgent), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("[AuditRepo Append] %w", err)
	}
	return nil
}

func (r *AuditRepo) List(ctx context.Context, offset, limit int) ([]*audit.Record, error) {
	off, lim := pageArgs(offset, limit)
	rows, err := r.db.QueryContext(ctx, `
		select id, actor_id, actor_name, action, table_name, record_id, old_values, new_values,
			ip_address, user_agent, created_at
		from audit_logs
		order by created_at, id
		offset $1 limit $2
	`, off, lim)
	if err != nil {
		return nil, fmt.Errorf("[AuditRepo List] %w", err)
	}
	defer rows.Close()

	var result []*audit.Record
	for rows.Next() {
		var (
			rec                audit.Record
			oldValues, newVals []byte
			ip, ua             sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.ActorID, &rec.ActorName, &rec.Action, &rec.Table, &rec.RecordID,
			&oldValues, &newVals, &ip, &ua, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("[AuditRepo List] scan: %w", err)
		}
		rec.OldValues = oldValues
		rec.NewValues = newVals
		rec.IPAddress = ip.String
		rec.UserAgent = ua.String
		result = append(result, &rec)
	}
	return result, rows.Err()
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
