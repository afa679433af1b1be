// Package cache memoizes idempotent read responses. The primary level is a
// local LRU with per-entry TTL; an optional Redis level survives process
// restarts and is shared across replicas. A background sweep purges expired
// entries independent of read traffic.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss indicates cache miss.
var ErrCacheMiss = errors.New("cache miss")

const redisKeyPrefix = "akamai:ops:cache:"

// Config configures the response cache.
type Config struct {
	// MaxEntries bounds the local LRU.
	MaxEntries int `yaml:"max_entries" json:"max_entries"`
	// DefaultTTL is the TTL the executor applies to cacheable responses.
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`
	// SweepInterval drives the background expiry sweep.
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
	// EnableRedis turns on the second level.
	EnableRedis bool `yaml:"enable_redis" json:"enable_redis"`
	// RedisAddr is the Redis endpoint when the second level is on.
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
	// RedisDB selects the Redis database.
	RedisDB int `yaml:"redis_db" json:"redis_db"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxEntries:    1000,
		DefaultTTL:    5 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Stats summarizes cache behaviour since construction.
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	SizeBytes int64 `json:"size_bytes"`
}

// Cache is the response cache. Construct with New, Close when done to stop
// the sweeper.
type Cache struct {
	config *Config
	local  *lruCache
	redis  *redis.Client
	logger *zap.Logger
	stop   chan struct{}
}

// New creates a response cache and starts its background sweep.
func New(config *Config, logger *zap.Logger) *Cache {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 1000
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 5 * time.Minute
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Cache{
		config: config,
		local:  newLRUCache(config.MaxEntries),
		logger: logger.With(zap.String("component", "response_cache")),
		stop:   make(chan struct{}),
	}
	if config.EnableRedis && config.RedisAddr != "" {
		c.redis = redis.NewClient(&redis.Options{
			Addr: config.RedisAddr,
			DB:   config.RedisDB,
		})
	}

	go c.sweepLoop()
	return c
}

// Key builds the cache key from an operation name and its canonicalized
// parameters. Parameter order never changes the key.
func Key(operation string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	canonical := make([][2]string, 0, len(keys))
	for _, k := range keys {
		canonical = append(canonical, [2]string{k, params[k]})
	}
	data, _ := json.Marshal(struct {
		Operation string      `json:"op"`
		Params    [][2]string `json:"params"`
	}{Operation: operation, Params: canonical})

	sum := sha256.Sum256(data)
	return operation + ":" + hex.EncodeToString(sum[:16])
}

// Get returns the cached entry for key, refreshing its recency. Expired
// entries are a miss.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, error) {
	if entry, ok := c.local.get(key); ok {
		return entry, nil
	}

	if c.redis != nil {
		data, err := c.redis.Get(ctx, redisKeyPrefix+key).Bytes()
		if err == nil {
			var entry Entry
			if err := json.Unmarshal(data, &entry); err == nil && time.Now().Before(entry.ExpiresAt) {
				c.local.set(key, &entry)
				return &entry, nil
			}
		}
	}

	return nil, ErrCacheMiss
}

// Set stores value under key with the given TTL. A non-positive TTL stores
// nothing: the entry would already be expired.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	size := 0
	data, err := json.Marshal(value)
	if err == nil {
		size = len(data)
	}

	now := time.Now()
	entry := &Entry{
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Size:      size,
	}
	c.local.set(key, entry)

	if c.redis != nil {
		payload, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := c.redis.Set(ctx, redisKeyPrefix+key, payload, ttl).Err(); err != nil {
			c.logger.Warn("redis cache write failed", zap.Error(err))
		}
	}
	return nil
}

// Delete removes key from every level.
func (c *Cache) Delete(ctx context.Context, key string) {
	c.local.delete(key)
	if c.redis != nil {
		if err := c.redis.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
			c.logger.Warn("redis cache delete failed", zap.Error(err))
		}
	}
}

// Clear drops the local level entirely. Redis entries age out by TTL.
func (c *Cache) Clear() {
	c.local.clear()
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	c.local.mu.Lock()
	defer c.local.mu.Unlock()
	return Stats{
		Entries:   len(c.local.items),
		Hits:      c.local.hits,
		Misses:    c.local.misses,
		Evictions: c.local.evictions,
		SizeBytes: c.local.sizeBytes,
	}
}

// Close stops the background sweep and releases the Redis client.
func (c *Cache) Close() error {
	close(c.stop)
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			if removed := c.local.sweep(now); removed > 0 {
				c.logger.Debug("expired entries swept", zap.Int("removed", removed))
			}
		}
	}
}
