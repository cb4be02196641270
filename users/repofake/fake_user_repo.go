package fakeuserrepo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-fund-auth/internal/errors"
	"github.com/jrsteele09/go-fund-auth/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

// FakeUserRepo stores copies of principals so callers can't mutate stored state by accident.
type FakeUserRepo struct {
	users       map[string]*users.Principal
	usernameIds map[string]string // lower-cased username to user id
	lock        sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:       make(map[string]*users.Principal),
		usernameIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(_ context.Context, user *users.Principal) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	key := strings.ToLower(user.Username)
	if existingID, ok := ur.usernameIds[key]; ok && existingID != user.ID {
		return apperrors.Conflict("username %q already exists", user.Username)
	}
	if old, ok := ur.users[user.ID]; ok && !strings.EqualFold(old.Username, user.Username) {
		delete(ur.usernameIds, strings.ToLower(old.Username))
	}
	stored := *user
	ur.users[user.ID] = &stored
	ur.usernameIds[key] = user.ID
	return nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.Principal, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, apperrors.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (ur *FakeUserRepo) GetByUsername(_ context.Context, username string) (*users.Principal, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.usernameIds[strings.ToLower(username)]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, apperrors.ErrNotFound)
	}
	cp := *ur.users[id]
	return &cp, nil
}

func (ur *FakeUserRepo) List(_ context.Context, offset, limit int) ([]*users.Principal, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userList := make([]*users.Principal, 0, len(ur.users))
	for _, v := range ur.users {
		cp := *v
		userList = append(userList, &cp)
	}
	sort.Slice(userList, func(i, j int) bool {
		return userList[i].ID < userList[j].ID
	})

	if offset >= len(userList) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(userList) {
		end = len(userList)
	}
	return userList[offset:end], nil
}

func (ur *FakeUserRepo) SetLocked(_ context.Context, id string, locked bool) error {
	return ur.update(id, func(u *users.Principal) {
		u.IsLocked = locked
		if !locked {
			u.FailedLogins = 0
		}
	})
}

func (ur *FakeUserRepo) SetOrganization(_ context.Context, id, organizationID string) error {
	return ur.update(id, func(u *users.Principal) {
		u.OrganizationID = organizationID
	})
}

// SetActive flips the active flag, standing in for an administrator deactivating an account.
func (ur *FakeUserRepo) SetActive(_ context.Context, id string, active bool) error {
	return ur.update(id, func(u *users.Principal) {
		u.IsActive = active
	})
}

// Delete removes a record outright. Only tests use it, to simulate a principal vanishing.
func (ur *FakeUserRepo) Delete(id string) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	if u, ok := ur.users[id]; ok {
		delete(ur.usernameIds, strings.ToLower(u.Username))
		delete(ur.users, id)
	}
}

func (ur *FakeUserRepo) RecordLoginFailure(_ context.Context, id string) (int, error) {
	var attempts int
	err := ur.update(id, func(u *users.Principal) {
		u.FailedLogins++
		attempts = u.FailedLogins
	})
	return attempts, err
}

func (ur *FakeUserRepo) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	return ur.update(id, func(u *users.Principal) {
		u.FailedLogins = 0
		u.LastLogin = at
	})
}

func (ur *FakeUserRepo) update(id string, fn func(*users.Principal)) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, apperrors.ErrNotFound)
	}
	fn(u)
	return nil
}
