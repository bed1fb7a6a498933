// Package cache is the Redis client shared by the catalog cache, the rate
// limiter, token revocation and the redis queue driver.
//
// Every helper treats a missing client as a permanent miss, so the API keeps
// serving from the database when Redis is down.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/shashiranjanraj/foodie/config"
	"github.com/shashiranjanraj/foodie/pkg/logger"
	"github.com/shashiranjanraj/foodie/pkg/metrics"
)

// RDB is nil when Redis is not reachable.
var RDB *redis.Client

var loads singleflight.Group

// Connect dials REDIS_ADDR and pings it. On failure RDB stays nil.
func Connect() error {
	client := redis.NewClient(&redis.Options{
		Addr:         config.RedisAddr(),
		Password:     config.RedisPassword(),
		PoolSize:     config.GetInt("REDIS_POOL_SIZE", 10),
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		RDB = nil
		return fmt.Errorf("cache: ping %s: %w", config.RedisAddr(), err)
	}
	RDB = client
	return nil
}

// Use installs client, or clears it with nil.
func Use(client *redis.Client) { RDB = client }

func Available() bool { return RDB != nil }

// Get decodes the JSON stored at key into dest and reports whether it did.
func Get(ctx context.Context, key string, dest any) bool {
	if RDB == nil {
		return false
	}
	raw, err := RDB.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false
	case err != nil:
		logger.WithCtx(ctx).Warn("cache: read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		logger.WithCtx(ctx).Warn("cache: dropping undecodable entry", "key", key, "error", err)
		_ = RDB.Del(ctx, key).Err()
		return false
	}
	return true
}

// Set stores value as JSON under key.
func Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if RDB == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return RDB.Set(ctx, key, raw, ttl).Err()
}

// Forget deletes keys.
func Forget(ctx context.Context, keys ...string) error {
	if RDB == nil || len(keys) == 0 {
		return nil
	}
	return RDB.Del(ctx, keys...).Err()
}

// Remember returns the value cached at key or loads, stores and returns it.
// Concurrent misses on one key share a single load, which is not cancelled
// when the first caller goes away. Hits and misses are counted under the
// second segment of the key ("foodie:catalog:items" counts as "catalog").
func Remember[T any](ctx context.Context, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var out T
	if Get(ctx, key, &out) {
		metrics.CacheHits.WithLabelValues(family(key)).Inc()
		return out, nil
	}
	metrics.CacheMisses.WithLabelValues(family(key)).Inc()

	v, err, _ := loads.Do(key, func() (any, error) {
		val, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if err := Set(ctx, key, val, ttl); err != nil {
			logger.WithCtx(ctx).Warn("cache: write failed", "key", key, "error", err)
		}
		return val, nil
	})
	if err != nil {
		return out, err
	}
	return v.(T), nil
}

func family(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) > 1 {
		return parts[1]
	}
	return parts[0]
}
