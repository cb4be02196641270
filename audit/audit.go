package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Actions recorded for authorization relevant mutations.
const (
	ActionUserCreate         = "USER_CREATE"
	ActionUserUpdate         = "USER_UPDATE"
	ActionUserLock           = "USER_LOCK"
	ActionUserUnlock         = "USER_UNLOCK"
	ActionRoleChange         = "ROLE_CHANGE"
	ActionOrganizationSwitch = "ORGANIZATION_SWITCH"
)

// Record is an append-only audit entry. Records are written once and never mutated or deleted.
type Record struct {
	ID        string          `json:"id"`
	ActorID   string          `json:"actorId"`
	ActorName string          `json:"actorName"`
	Action    string          `json:"action"`
	Table     string          `json:"table"`
	RecordID  string          `json:"recordId"`
	OldValues json.RawMessage `json:"oldValues,omitempty"`
	NewValues json.RawMessage `json:"newValues,omitempty"`
	IPAddress string          `json:"ipAddress,omitempty"`
	UserAgent string          `json:"userAgent,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Snapshot marshals v for the old/new value columns. Values that cannot be marshalled are dropped.
func Snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

type ctxKey string

const requestMetaKey ctxKey = "audit_request_meta"

type requestMeta struct {
	ip        string
	userAgent string
}

// WithRequestMeta attaches the caller's source address and user agent for audit records.
func WithRequestMeta(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestMetaKey, requestMeta{
		ip:        strings.TrimSpace(ip),
		userAgent: strings.TrimSpace(userAgent),
	})
}

func requestMetaFromContext(ctx context.Context) requestMeta {
	if ctx == nil {
		return requestMeta{}
	}
	m, _ := ctx.Value(requestMetaKey).(requestMeta)
	return m
}

// Recorder writes audit records on a fire-and-forget basis: a failed write is logged and never
// returned to the operation that produced it.
type Recorder struct {
	repo    Repo
	nowFunc func() time.Time
}

type RecorderOption func(*Recorder)

func WithNowFunc(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.nowFunc = now
	}
}

func NewRecorder(repo Repo, options ...RecorderOption) *Recorder {
	r := &Recorder{repo: repo, nowFunc: time.Now}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Record fills in id, timestamp and request metadata then appends rec. A nil Recorder is a no-op.
func (r *Recorder) Record(ctx context.Context, rec Record) {
	if r == nil || r.repo == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.nowFunc().UTC()
	}
	meta := requestMetaFromContext(ctx)
	if rec.IPAddress == "" {
		rec.IPAddress = meta.ip
	}
	if rec.UserAgent == "" {
		rec.UserAgent = meta.userAgent
	}

	if err := r.repo.Append(context.WithoutCancel(ctx), &rec); err != nil {
		log.Warn().Err(err).
			Str("action", rec.Action).
			Str("table", rec.Table).
			Str("record_id", rec.RecordID).
			Msg("audit record write failed")
	}
}
