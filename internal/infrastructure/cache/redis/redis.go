// Package redis implements the credential cache on Redis, for headless
// deployments where several workers share one platform session profile.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/learnsphere/platform-client/internal/core/domain"
)

const (
	defaultTimeout = 5 * time.Second

	// cacheTTL bounds how long a cached identity outlives its last
	// confirmation; a live client rewrites the entry on every successful
	// login, refresh, or verify.
	cacheTTL = 30 * 24 * time.Hour
)

// Config captures the settings for establishing a Redis connection.
type Config struct {
	Addr    string
	DB      int
	Timeout time.Duration
}

// Connect initialises a Redis client and validates connectivity with a ping.
// A default timeout is applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// Cache stores the last-known user under a per-profile key.
// Key format: session:credentials:<profile>
type Cache struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

// NewCache creates a Cache for the given profile on an established client.
func NewCache(client *redis.Client, profile string) *Cache {
	return &Cache{
		client:  client,
		key:     fmt.Sprintf("session:credentials:%s", profile),
		timeout: defaultTimeout,
	}
}

// Load returns the cached user, or domain.ErrCacheMiss when the key is absent
// or holds something unreadable.
func (c *Cache) Load() (*domain.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read credential cache: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		_ = c.Clear()
		return nil, domain.ErrCacheMiss
	}
	return &user, nil
}

// Store writes the user, refreshing the entry's TTL.
func (c *Cache) Store(user *domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode credential cache: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.client.Set(ctx, c.key, raw, cacheTTL).Err(); err != nil {
		return fmt.Errorf("write credential cache: %w", err)
	}
	return nil
}

// Clear removes the cached user.
func (c *Cache) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("clear credential cache: %w", err)
	}
	return nil
}
