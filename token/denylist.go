package token

import (
	"context"
	"sync"
	"time"
)

// Denylist rejects tokens of a principal issued at or before the moment it was denied. It is an
// optional extension on top of the live principal re-fetch; entries only need to outlive the
// access token TTL.
type Denylist interface {
	Deny(ctx context.Context, principalID string, at time.Time, ttl time.Duration) error
	Allow(ctx context.Context, principalID string) error
	IsDenied(ctx context.Context, principalID string, issuedAt time.Time) (bool, error)
}

type denial struct {
	at      time.Time
	expires time.Time
}

// InMemoryDenylist is a simple in-memory implementation
type InMemoryDenylist struct {
	denied  map[string]denial
	mu      sync.RWMutex
	nowFunc func() time.Time
}

func NewInMemoryDenylist() *InMemoryDenylist {
	return &InMemoryDenylist{
		denied:  make(map[string]denial),
		nowFunc: time.Now,
	}
}

func (d *InMemoryDenylist) Deny(_ context.Context, principalID string, at time.Time, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.denied[principalID] = denial{at: at, expires: at.Add(ttl)}
	return nil
}

func (d *InMemoryDenylist) Allow(_ context.Context, principalID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.denied, principalID)
	return nil
}

func (d *InMemoryDenylist) IsDenied(_ context.Context, principalID string, issuedAt time.Time) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.denied[principalID]
	if !ok || d.nowFunc().After(entry.expires) {
		return false, nil
	}
	return !issuedAt.After(entry.at), nil
}

// Cleanup removes expired entries
func (d *InMemoryDenylist) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.nowFunc()
	for id, entry := range d.denied {
		if now.After(entry.expires) {
			delete(d.denied, id)
		}
	}
}
