package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	PlatformURL    string        `env:"PLATFORM_API_URL,     default=http://localhost:8080"`
	RequestTimeout time.Duration `env:"PLATFORM_API_TIMEOUT, default=30s"`
	Env            string        `env:"ENV,                  default=development"`
	LogLevel       string        `env:"LOG_LEVEL,            default=info"`

	Cache CacheConfig
	Redis RedisConfig
}

type CacheConfig struct {
	// Backend selects where the credential cache lives: "file" or "redis".
	Backend string `env:"SESSION_CACHE_BACKEND, default=file"`
	// Dir is the state directory for the file backend and the cookie jar.
	// Defaults to <user config dir>/learnsphere.
	Dir string `env:"SESSION_CACHE_DIR"`
	// Profile namespaces cached credentials when several identities share
	// one backend.
	Profile string `env:"SESSION_CACHE_PROFILE, default=default"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = defaultCacheDir()
	}
	return &cfg
}

func defaultCacheDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "learnsphere")
}
