package token

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ Denylist = (*RedisDenylist)(nil)

// RedisDenylist stores one key per denied principal holding the denial time in unix nanoseconds.
// Redis expires the key after the TTL.
type RedisDenylist struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisDenylist(client redis.UniversalClient) *RedisDenylist {
	return &RedisDenylist{client: client, prefix: "denylist:principal:"}
}

// NewRedisClient parses url and validates connectivity at startup.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return rdb, nil
}

func (d *RedisDenylist) key(principalID string) string {
	return fmt.Sprintf("%s%s", d.prefix, principalID)
}

func (d *RedisDenylist) Deny(ctx context.Context, principalID string, at time.Time, ttl time.Duration) error {
	if err := d.client.Set(ctx, d.key(principalID), at.UnixNano(), ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to add principal to denylist")
	}
	return nil
}

func (d *RedisDenylist) Allow(ctx context.Context, principalID string) error {
	if err := d.client.Del(ctx, d.key(principalID)).Err(); err != nil {
		return errors.Wrap(err, "failed to remove principal from denylist")
	}
	return nil
}

func (d *RedisDenylist) IsDenied(ctx context.Context, principalID string, issuedAt time.Time) (bool, error) {
	val, err := d.client.Get(ctx, d.key(principalID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to check denylist")
	}
	nanos, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, errors.Wrap(err, "corrupt denylist entry")
	}
	return !issuedAt.After(time.Unix(0, nanos)), nil
}
