package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTTL is how long a cached value stays usable.
const DefaultTTL = time.Hour

// Cache keys.
const (
	KeyRepositories = "github-repos"
	KeyMetadata     = "github-metadata"
)

// LanguagesKey is the cache key of a repository's language map.
func LanguagesKey(name string) string { return "languages-" + name }

// ReadmeKey is the cache key of a repository's README.
func ReadmeKey(name string) string { return "readme-" + name }

// entry is the stored form of a value. Timestamp is in Unix milliseconds.
type entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Cache stores JSON values with a write timestamp and drops them once older than the TTL.
// Expiry is lazy: an expired entry is removed by the read that finds it.
type Cache struct {
	storage Storage
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

// WithCacheClock replaces time.Now, for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a Cache backed by storage.
func NewCache(storage Storage, logger *slog.Logger, opts ...CacheOption) *Cache {
	c := &Cache{storage: storage, ttl: DefaultTTL, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get decodes the value stored under key into v. It reports false when the key is absent,
// expired or unreadable; v is then left untouched.
func (c *Cache) Get(key string, v any) (bool, error) {
	raw, ok, err := c.storage.Get(key)
	if err != nil {
		return false, err
	}
	if !ok {
		c.logger.Debug("cache miss", "key", key)
		return false, nil
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn("dropping unreadable cache entry", "key", key, "error", err)
		return false, c.storage.Remove(key)
	}

	created := time.UnixMilli(e.Timestamp)
	age := c.now().Sub(created)
	if age > c.ttl {
		c.logger.Debug("cache expired", "key", key, "created", created.UTC(), "expired", created.Add(c.ttl).UTC())
		return false, c.storage.Remove(key)
	}

	if err := json.Unmarshal(e.Data, v); err != nil {
		c.logger.Warn("dropping unreadable cache entry", "key", key, "error", err)
		return false, c.storage.Remove(key)
	}
	c.logger.Debug("cache hit", "key", key, "age", age.Round(time.Second), "expires", created.Add(c.ttl).UTC())
	return true, nil
}

// Set stores v under key, stamped with the current time.
func (c *Cache) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	raw, err := json.Marshal(entry{Data: data, Timestamp: c.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.storage.Set(key, raw); err != nil {
		return err
	}
	c.logger.Debug("cached", "key", key, "expires", c.now().Add(c.ttl).UTC())
	return nil
}

// Purge drops every entry so the next load goes to the server.
func (c *Cache) Purge() error {
	if err := c.storage.Clear(); err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}
	c.logger.Info("client cache purged")
	return nil
}
