package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/learnsphere/platform-client/internal/core/domain"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)

	client, err := Connect(context.Background(), Config{Addr: srv.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(client, "test")
}

func TestCache_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	user := &domain.User{ID: 9, RoleID: domain.RoleAdmin, FullName: "Eve"}

	if err := c.Store(user); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, err := c.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ID != 9 || got.RoleID != domain.RoleAdmin {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestCache_MissWhenEmpty(t *testing.T) {
	c := newTestCache(t)
	if _, err := c.Load(); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewCache(client, "test")
	srv.Set("session:credentials:test", "{not json")

	if _, err := c.Load(); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}
}

func TestCache_Clear(t *testing.T) {
	c := newTestCache(t)
	if err := c.Store(&domain.User{ID: 1, RoleID: domain.RoleStudent}); err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := c.Load(); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected miss after clear, got %v", err)
	}
}
