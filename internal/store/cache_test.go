package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rocksteady808/roolify-sub002/internal/models"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	failGet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, errors.New("connection refused")
	}
	b, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return b, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

// countingStore records settings lookups against an in-memory map
type countingStore struct {
	Store
	settings map[[2]int]*models.NotificationSettings
	gets     int
}

func (s *countingStore) GetSettings(ctx context.Context, formID, siteID int) (*models.NotificationSettings, error) {
	s.gets++
	if st, ok := s.settings[[2]int{formID, siteID}]; ok {
		copied := *st
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (s *countingStore) UpsertSettings(ctx context.Context, settings *models.NotificationSettings) error {
	s.settings[[2]int{settings.FormID, settings.SiteID}] = settings
	return nil
}

func TestCachedStore_GetSettings(t *testing.T) {
	backing := &countingStore{settings: map[[2]int]*models.NotificationSettings{
		{10, 20}: {ID: 1, FormID: 10, SiteID: 20, AdminFallbackEmail: "b@y.com"},
	}}
	cache := newMemoryCache()
	s := NewCachedStore(backing, cache, time.Minute, zap.NewNop())
	ctx := context.Background()

	first, err := s.GetSettings(ctx, 10, 20)
	require.NoError(t, err)
	second, err := s.GetSettings(ctx, 10, 20)
	require.NoError(t, err)

	assert.Equal(t, "b@y.com", first.AdminFallbackEmail)
	assert.Equal(t, first.AdminFallbackEmail, second.AdminFallbackEmail)
	assert.Equal(t, 1, backing.gets)
	assert.Contains(t, cache.entries, "roolify:settings:10:20")
}

func TestCachedStore_CachesAbsence(t *testing.T) {
	backing := &countingStore{settings: map[[2]int]*models.NotificationSettings{}}
	s := NewCachedStore(backing, newMemoryCache(), time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.GetSettings(ctx, 1, 2)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, 1, backing.gets)
}

func TestCachedStore_UpsertInvalidates(t *testing.T) {
	backing := &countingStore{settings: map[[2]int]*models.NotificationSettings{}}
	s := NewCachedStore(backing, newMemoryCache(), time.Minute, zap.NewNop())
	ctx := context.Background()

	_, err := s.GetSettings(ctx, 10, 20)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.UpsertSettings(ctx, &models.NotificationSettings{FormID: 10, SiteID: 20, UserFallbackEmail: "u@x.com"}))

	settings, err := s.GetSettings(ctx, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, "u@x.com", settings.UserFallbackEmail)
	assert.Equal(t, 2, backing.gets)
}

func TestCachedStore_CacheFailureFallsThrough(t *testing.T) {
	backing := &countingStore{settings: map[[2]int]*models.NotificationSettings{
		{10, 20}: {ID: 1, FormID: 10, SiteID: 20},
	}}
	cache := newMemoryCache()
	cache.failGet = true
	s := NewCachedStore(backing, cache, time.Minute, zap.NewNop())

	settings, err := s.GetSettings(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, settings.ID)
}
