// Package rediscache is a Redis-backed movie detail cache. Entries expire
// through the Redis TTL, so a shared cache serves several clients.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmcdole/flickpick/internal/domain"
)

// DefaultTTL is how long a detail stays cached
const DefaultTTL = 24 * time.Hour

const keyPrefix = "flickpick:detail:"

// Cache implements domain.DetailCache on Redis
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// New creates a cache. ttl <= 0 uses DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{redis: client, ttl: ttl}
}

// Connect opens a client for addr and checks it with a ping
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func detailKey(movieID int) string {
	return keyPrefix + strconv.Itoa(movieID)
}

// GetDetail returns domain.ErrCacheMiss when the movie is not cached
func (c *Cache) GetDetail(ctx context.Context, movieID int) (*domain.MovieDetail, error) {
	data, err := c.redis.Get(ctx, detailKey(movieID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var detail domain.MovieDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		// Unreadable entries are dropped and reported as a miss
		_ = c.redis.Del(ctx, detailKey(movieID)).Err()
		return nil, domain.ErrCacheMiss
	}
	return &detail, nil
}

// PutDetail stores a detail with the cache TTL. Per-user fields are not cached.
func (c *Cache) PutDetail(ctx context.Context, detail domain.MovieDetail) error {
	detail.IsFavourite = false
	detail.PosterURL = ""

	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal detail: %w", err)
	}
	if err := c.redis.Set(ctx, detailKey(detail.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
