// Package backend opens the stores and the denylist selected by configuration.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-fund-auth/audit"
	fakeauditrepo "github.com/jrsteele09/go-fund-auth/audit/repofake"
	"github.com/jrsteele09/go-fund-auth/internal/config"
	"github.com/jrsteele09/go-fund-auth/roles"
	fakerolerepo "github.com/jrsteele09/go-fund-auth/roles/repofake"
	"github.com/jrsteele09/go-fund-auth/store/postgres"
	"github.com/jrsteele09/go-fund-auth/tenants"
	tenantrepofakes "github.com/jrsteele09/go-fund-auth/tenants/repofakes"
	"github.com/jrsteele09/go-fund-auth/token"
	"github.com/jrsteele09/go-fund-auth/users"
	fakeuserrepo "github.com/jrsteele09/go-fund-auth/users/repofake"
	"github.com/rs/zerolog/log"
)

const denylistCleanupInterval = 10 * time.Minute

type Backend struct {
	Users    users.Repo
	Roles    roles.Repo
	Tenants  tenants.Repo
	Audit    audit.Repo
	Denylist token.Denylist

	closers []func() error
}

// Open uses PostgreSQL when DATABASE_URL is set and Redis for the denylist when REDIS_URL is set.
// Without a database URL the in-memory stores are used, which is only allowed in DEV.
func Open(ctx context.Context, cfg config.EnvConfig) (*Backend, error) {
	b := &Backend{}

	if dsn := cfg.GetDatabaseURL(); dsn != "" {
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("[backend Open] %w", err)
		}
		b.closers = append(b.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("[backend Open] %w", err)
		}
		b.Users, b.Roles, b.Tenants, b.Audit = store.Users(), store.Roles(), store.Tenants(), store.Audit()
		log.Info().Msg("using postgres store")
	} else {
		if cfg.GetEnv() != "DEV" {
			return nil, fmt.Errorf("[backend Open] DATABASE_URL is required outside DEV")
		}
		b.Users = fakeuserrepo.NewFakeUserRepo()
		b.Roles = fakerolerepo.NewFakeRoleRepo()
		b.Tenants = tenantrepofakes.NewFakeTenantRepo()
		b.Audit = fakeauditrepo.NewFakeAuditRepo()
		log.Warn().Msg("DATABASE_URL not set, using in-memory stores")
	}

	if url := cfg.GetRedisURL(); url != "" {
		client, err := token.NewRedisClient(ctx, url)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("[backend Open] %w", err)
		}
		b.closers = append(b.closers, client.Close)
		b.Denylist = token.NewRedisDenylist(client)
		log.Info().Msg("using redis denylist")
	} else {
		denylist := token.NewInMemoryDenylist()
		b.Denylist = denylist
		go cleanupLoop(ctx, denylist)
	}
	return b, nil
}

func cleanupLoop(ctx context.Context, denylist *token.InMemoryDenylist) {
	ticker := time.NewTicker(denylistCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			denylist.Cleanup()
		}
	}
}

// Close releases connections in reverse order of opening.
func (b *Backend) Close() error {
	var firstErr error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.closers = nil
	return firstErr
}
