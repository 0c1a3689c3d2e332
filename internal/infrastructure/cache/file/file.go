// Package file implements the credential cache on the local filesystem, the
// default backend for interactive use.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/learnsphere/platform-client/internal/core/domain"
)

const cacheFile = "credentials.json"

// Cache stores the last-known user as a JSON file under dir.
type Cache struct {
	path string
}

// New creates a Cache rooted at dir. The directory is created on first write.
func New(dir string) *Cache {
	return &Cache{path: filepath.Join(dir, cacheFile)}
}

// Load returns the cached user. A missing file is a plain miss; an unreadable
// or corrupt file is a miss that also removes the damaged entry.
func (c *Cache) Load() (*domain.User, error) {
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
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

// Store writes the user with a temp-file rename so a crash mid-write cannot
// leave a truncated cache behind.
func (c *Cache) Store(user *domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode credential cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write credential cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("write credential cache: %w", err)
	}
	return nil
}

// Clear removes the cache entry. Clearing an empty cache is a no-op.
func (c *Cache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear credential cache: %w", err)
	}
	return nil
}
