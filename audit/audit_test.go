package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/go-fund-auth/audit"
	fakeauditrepo "github.com/jrsteele09/go-fund-auth/audit/repofake"
	"github.com/stretchr/testify/require"
)

func TestRecorderFillsMetadata(t *testing.T) {
	repo := fakeauditrepo.NewFakeAuditRepo()
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	rec := audit.NewRecorder(repo, audit.WithNowFunc(func() time.Time { return now }))

	ctx := audit.WithRequestMeta(context.Background(), "10.0.0.7", "fund-admin-web/1.0")
	rec.Record(ctx, audit.Record{
		ActorID:   "user-1",
		ActorName: "treasurer",
		Action:    audit.ActionOrganizationSwitch,
		Table:     "users",
		RecordID:  "user-1",
		OldValues: audit.Snapshot(map[string]string{"organizationId": "1"}),
		NewValues: audit.Snapshot(map[string]string{"organizationId": "2"}),
	})

	records := repo.Records()
	require.Len(t, records, 1)
	require.NotEmpty(t, records[0].ID)
	require.Equal(t, now, records[0].CreatedAt)
	require.Equal(t, "10.0.0.7", records[0].IPAddress)
	require.Equal(t, "fund-admin-web/1.0", records[0].UserAgent)
	require.JSONEq(t, `{"organizationId":"2"}`, string(records[0].NewValues))
}

func TestRecorderSwallowsFailures(t *testing.T) {
	repo := fakeauditrepo.NewFakeAuditRepo()
	repo.Err = errors.New("audit table unavailable")
	rec := audit.NewRecorder(repo)

	require.NotPanics(t, func() {
		rec.Record(context.Background(), audit.Record{Action: audit.ActionUserLock})
	})
	require.Empty(t, repo.Records())
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *audit.Recorder
	require.NotPanics(t, func() {
		rec.Record(context.Background(), audit.Record{Action: audit.ActionUserLock})
	})
}
