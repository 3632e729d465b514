// Package store provides caching decorators over the catalog database.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/colively/campaign-engine/internal/domain"
	"github.com/colively/campaign-engine/internal/pkg/logger"
)

// RegionSource is the subset of the catalog store the cache decorates.
type RegionSource interface {
	RegionByCode(ctx context.Context, code string) (*domain.Region, error)
	RegionByName(ctx context.Context, name string) (*domain.Region, error)
}

// RegionCache is a read-through Redis cache for region records. Region data
// (community links mostly) changes rarely but is fetched once per subscriber,
// so a short TTL removes most of the per-run database load. Cache outages
// degrade to direct store reads, never to failures.
type RegionCache struct {
	source RegionSource
	rdb    *redis.Client
	ttl    time.Duration
}

// NewRegionCache wraps a region source with a Redis cache.
func NewRegionCache(source RegionSource, rdb *redis.Client, ttl time.Duration) *RegionCache {
	return &RegionCache{source: source, rdb: rdb, ttl: ttl}
}

// RegionByCode implements RegionSource with read-through caching.
func (c *RegionCache) RegionByCode(ctx context.Context, code string) (*domain.Region, error) {
	return c.lookup(ctx, "region:code:"+code, func() (*domain.Region, error) {
		return c.source.RegionByCode(ctx, code)
	})
}

// RegionByName implements RegionSource with read-through caching.
func (c *RegionCache) RegionByName(ctx context.Context, name string) (*domain.Region, error) {
	return c.lookup(ctx, "region:name:"+name, func() (*domain.Region, error) {
		return c.source.RegionByName(ctx, name)
	})
}

// negative is the cached marker for "region does not exist", so misses don't
// hammer the database either.
const negative = "null"

func (c *RegionCache) lookup(ctx context.Context, key string, fetch func() (*domain.Region, error)) (*domain.Region, error) {
	if data, err := c.rdb.Get(ctx, key).Result(); err == nil {
		if data == negative {
			return nil, nil
		}
		var region domain.Region
		if err := json.Unmarshal([]byte(data), &region); err == nil {
			return &region, nil
		}
	} else if err != redis.Nil {
		logger.Warn("region cache read failed, falling back to store", "key", key, "error", err)
	}

	region, err := fetch()
	if err != nil {
		return nil, err
	}

	payload := negative
	if region != nil {
		if data, err := json.Marshal(region); err == nil {
			payload = string(data)
		}
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		logger.Warn("region cache write failed", "key", key, "error", err)
	}

	return region, nil
}
