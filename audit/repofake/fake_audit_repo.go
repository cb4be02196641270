package fakeauditrepo

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-fund-auth/audit"
)

var _ audit.Repo = (*FakeAuditRepo)(nil)

type FakeAuditRepo struct {
	records []*audit.Record
	lock    sync.RWMutex
	// Err, when set, is returned by Append to simulate a failing audit store.
	Err error
}

func NewFakeAuditRepo() *FakeAuditRepo {
	return &FakeAuditRepo{}
}

func (ar *FakeAuditRepo) Append(_ context.Context, rec *audit.Record) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()
	if ar.Err != nil {
		return ar.Err
	}
	cp := *rec
	ar.records = append(ar.records, &cp)
	return nil
}

func (ar *FakeAuditRepo) List(_ context.Context, offset, limit int) ([]*audit.Record, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()
	if offset >= len(ar.records) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(ar.records) {
		end = len(ar.records)
	}
	out := make([]*audit.Record, 0, end-offset)
	for _, r := range ar.records[offset:end] {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

// Records returns every stored record.
func (ar *FakeAuditRepo) Records() []*audit.Record {
	list, _ := ar.List(context.Background(), 0, 0)
	return list
}
