package tenantrepofakes

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-fund-auth/internal/errors"
	"github.com/jrsteele09/go-fund-auth/tenants"
)

var _ tenants.Repo = (*FakeTenantRepo)(nil)

type FakeTenantRepo struct {
	orgs     map[string]*tenants.Organization
	branches map[string]*tenants.Branch // organizationID + "/" + code
	lock     sync.RWMutex
}

func NewFakeTenantRepo() *FakeTenantRepo {
	return &FakeTenantRepo{
		orgs:     make(map[string]*tenants.Organization),
		branches: make(map[string]*tenants.Branch),
	}
}

func (tr *FakeTenantRepo) Upsert(_ context.Context, org *tenants.Organization) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	stored := *org
	tr.orgs[org.ID] = &stored
	return nil
}

func (tr *FakeTenantRepo) Get(_ context.Context, organizationID string) (*tenants.Organization, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	org, ok := tr.orgs[organizationID]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", organizationID, apperrors.ErrNotFound)
	}
	cp := *org
	return &cp, nil
}

func (tr *FakeTenantRepo) List(_ context.Context, offset, limit int) ([]*tenants.Organization, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	list := make([]*tenants.Organization, 0, len(tr.orgs))
	for _, o := range tr.orgs {
		cp := *o
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})

	if offset >= len(list) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(list) {
		end = len(list)
	}
	return list[offset:end], nil
}

func (tr *FakeTenantRepo) UpsertBranch(_ context.Context, branch *tenants.Branch) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	if _, ok := tr.orgs[branch.OrganizationID]; !ok {
		return fmt.Errorf("organization %s: %w", branch.OrganizationID, apperrors.ErrNotFound)
	}
	if branch.ID == "" {
		branch.ID = uuid.New().String()
	}
	stored := *branch
	tr.branches[branchKey(branch.OrganizationID, branch.Code)] = &stored
	return nil
}

func (tr *FakeTenantRepo) GetBranch(_ context.Context, organizationID, code string) (*tenants.Branch, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	b, ok := tr.branches[branchKey(organizationID, code)]
	if !ok {
		return nil, fmt.Errorf("branch %s/%s: %w", organizationID, code, apperrors.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func branchKey(organizationID, code string) string {
	return organizationID + "/" + code
}
