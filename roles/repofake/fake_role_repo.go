package fakerolerepo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-fund-auth/internal/errors"
	"github.com/jrsteele09/go-fund-auth/roles"
)

var _ roles.Repo = (*FakeRoleRepo)(nil)

type FakeRoleRepo struct {
	roles map[string]*roles.Role
	names map[string]string // normalized name to id
	lock  sync.RWMutex
}

func NewFakeRoleRepo() *FakeRoleRepo {
	return &FakeRoleRepo{
		roles: make(map[string]*roles.Role),
		names: make(map[string]string),
	}
}

func (rr *FakeRoleRepo) Upsert(_ context.Context, role *roles.Role) error {
	rr.lock.Lock()
	defer rr.lock.Unlock()

	if role.ID == "" {
		role.ID = uuid.New().String()
	}
	name := roles.NormalizeName(role.Name)
	if id, ok := rr.names[name]; ok && id != role.ID {
		return apperrors.Conflict("role %q already exists", role.Name)
	}
	stored := *role
	stored.Permissions = role.Permissions.Clone()
	rr.roles[role.ID] = &stored
	rr.names[name] = role.ID
	return nil
}

func (rr *FakeRoleRepo) GetByID(_ context.Context, id string) (*roles.Role, error) {
	rr.lock.RLock()
	defer rr.lock.RUnlock()

	r, ok := rr.roles[id]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", id, apperrors.ErrNotFound)
	}
	return copyRole(r), nil
}

func (rr *FakeRoleRepo) GetByName(_ context.Context, name string) (*roles.Role, error) {
	rr.lock.RLock()
	defer rr.lock.RUnlock()

	id, ok := rr.names[roles.NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", name, apperrors.ErrNotFound)
	}
	return copyRole(rr.roles[id]), nil
}

func (rr *FakeRoleRepo) List(_ context.Context) ([]*roles.Role, error) {
	rr.lock.RLock()
	defer rr.lock.RUnlock()

	list := make([]*roles.Role, 0, len(rr.roles))
	for _, r := range rr.roles {
		list = append(list, copyRole(r))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list, nil
}

func copyRole(r *roles.Role) *roles.Role {
	cp := *r
	cp.Permissions = r.Permissions.Clone()
	return &cp
}
