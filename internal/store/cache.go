package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Rocksteady808/roolify-sub002/internal/models"
)

// ErrCacheMiss is returned by a Cache when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the key/value surface CachedStore needs.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RedisCache adapts a go-redis client to Cache
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the Redis instance at rawURL
func NewRedisCache(ctx context.Context, rawURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

// Close releases the connection pool
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// cachedSettings also records absence so unconfigured forms do not hit the
// backing store on every submission.
type cachedSettings struct {
	Found    bool                         `json:"found"`
	Settings *models.NotificationSettings `json:"settings,omitempty"`
}

// CachedStore caches settings lookups in front of another Store. Entries
// live for ttl and are dropped whenever the settings are written.
type CachedStore struct {
	Store
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedStore wraps next with a settings cache
func NewCachedStore(next Store, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedStore {
	return &CachedStore{Store: next, cache: cache, ttl: ttl, logger: logger}
}

func settingsKey(formID, siteID int) string {
	return fmt.Sprintf("roolify:settings:%d:%d", formID, siteID)
}

// GetSettings serves from the cache, falling back to the backing store on
// a miss or any cache failure.
func (s *CachedStore) GetSettings(ctx context.Context, formID, siteID int) (*models.NotificationSettings, error) {
	key := settingsKey(formID, siteID)

	raw, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		var entry cachedSettings
		if err := json.Unmarshal(raw, &entry); err == nil {
			if !entry.Found {
				return nil, ErrNotFound
			}
			return entry.Settings, nil
		}
		s.logger.Warn("Discarding corrupt settings cache entry", zap.String("key", key))
	case !errors.Is(err, ErrCacheMiss):
		s.logger.Warn("Settings cache read failed", zap.String("key", key), zap.Error(err))
	}

	settings, err := s.Store.GetSettings(ctx, formID, siteID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	entry := cachedSettings{Found: err == nil, Settings: settings}
	if b, mErr := json.Marshal(entry); mErr == nil {
		if cErr := s.cache.Set(ctx, key, b, s.ttl); cErr != nil {
			s.logger.Warn("Settings cache write failed", zap.String("key", key), zap.Error(cErr))
		}
	}

	return settings, err
}

// UpsertSettings writes through and invalidates the cached entry
func (s *CachedStore) UpsertSettings(ctx context.Context, settings *models.NotificationSettings) error {
	if err := s.Store.UpsertSettings(ctx, settings); err != nil {
		return err
	}
	key := settingsKey(settings.FormID, settings.SiteID)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("Settings cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}
