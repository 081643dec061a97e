// Package config loads the relay's process configuration from the
// environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"

	"chat-relay/internal/cache"
	"chat-relay/internal/relay"
	"chat-relay/internal/target"
)

type Config struct {
	// Upstream
	Credential            string        `env:"API_KEY"`
	BaseURL               string        `env:"API_BASE_URL" envDefault:"https://api.openai.com"`
	UpstreamHeaderTimeout time.Duration `env:"UPSTREAM_HEADER_TIMEOUT"`
	UpstreamReadTimeout   time.Duration `env:"UPSTREAM_READ_TIMEOUT"`

	// HTTP server
	Port         string `env:"PORT" envDefault:"3000"`
	MaxBodyBytes int64  `env:"MAX_BODY_BYTES" envDefault:"1048576"`

	// Logging
	Env      string `env:"ENV"`
	LogLevel string `env:"LOG_LEVEL"`

	// Replay cache
	CacheBackend  string        `env:"CACHE_BACKEND" envDefault:"none"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	CachePrefix   string        `env:"CACHE_PREFIX" envDefault:"chatrelay"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB"`
}

// Load parses the environment into a Config. It does not validate: flag
// overrides are applied afterwards, so callers run Validate on the final
// value. A missing API_KEY is never an error; requests fail individually.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse environment: %w", err)
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	switch c.CacheBackend {
	case cache.BackendNone, cache.BackendMemory, cache.BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be one of none, memory, redis (got %q)", c.CacheBackend))
	}

	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.UpstreamHeaderTimeout < 0 {
		errs = append(errs, errors.New("UPSTREAM_HEADER_TIMEOUT must not be negative"))
	}
	if c.UpstreamReadTimeout < 0 {
		errs = append(errs, errors.New("UPSTREAM_READ_TIMEOUT must not be negative"))
	}
	if c.CacheBackend != cache.BackendNone && c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive when caching is enabled"))
	}

	return errors.Join(errs...)
}

// Target is the resolver's view of the configuration.
func (c Config) Target() target.Config {
	return target.Config{
		Credential: c.Credential,
		BaseURL:    c.BaseURL,
	}
}

func (c Config) Relay() relay.Config {
	return relay.Config{
		UpstreamHeaderTimeout: c.UpstreamHeaderTimeout,
		ReadTimeout:           c.UpstreamReadTimeout,
	}
}

func (c Config) Cache() cache.Config {
	return cache.Config{
		Backend: c.CacheBackend,
		TTL:     c.CacheTTL,
		Prefix:  c.CachePrefix,
	}
}
