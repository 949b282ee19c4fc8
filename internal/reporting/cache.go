package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a versioned JSON cache over redis. Keys embed a per-tenant
// version counter, so bumping the counter orphans every cached report
// for that tenant at once and the TTL reclaims the stale entries.
//
// A nil Cache (or one without a client) degrades to pass-through, which
// keeps the read path alive when redis is down.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache wraps the redis client. TTL bounds report staleness between
// version bumps.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func versionKey(tenant string) string {
	return "reporting:ver:" + tenant
}

// Version returns the tenant's current cache version, initialising it
// to 1 when missing.
func (c *Cache) Version(ctx context.Context, tenant string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(tenant)).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, versionKey(tenant), 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes a cache key from the tenant, the report name, and
// its parameters, suffixed with the tenant's version.
func (c *Cache) BuildKey(ctx context.Context, tenant string, parts ...string) (string, error) {
	joined := strings.Join(append([]string{"reporting", tenant}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx, tenant)
	if err != nil {
		return "", err
	}
	return joined + ":" + formatInt(ver), nil
}

// FetchJSON returns the cached value for key or computes it with the
// loader and stores the result.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("reporting: cache loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		return err
	}

	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every cached report for the tenant by moving its
// version forward.
func (c *Cache) Bump(ctx context.Context, tenant string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(tenant)).Err()
}
