package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/voyagen/channelvault/internal/cache"
	"github.com/voyagen/channelvault/internal/log"
	"github.com/voyagen/channelvault/internal/models"
)

// Cache TTLs for different entity types.
const (
	ttlSources  = 2 * time.Minute
	ttlSource   = 5 * time.Minute
	ttlChannels = 1 * time.Minute
	ttlChannel  = 5 * time.Minute
	ttlGroups   = 5 * time.Minute
)

// CachedStore wraps a Store with a Redis caching layer.
// Read-heavy operations are served from cache when possible;
// write operations invalidate the relevant cache keys.
type CachedStore struct {
	inner  Store
	cache  *cache.Redis
	logger zerolog.Logger
}

// NewCachedStore creates a CachedStore that wraps inner with Redis caching.
func NewCachedStore(inner Store, c *cache.Redis) *CachedStore {
	return &CachedStore{inner: inner, cache: c, logger: log.With("cache")}
}

// --- cached read operations ---

func (c *CachedStore) ListSources(ctx context.Context) ([]models.Source, error) {
	const key = "sources:all"
	if v, err := cache.Get[[]models.Source](ctx, c.cache, key); err == nil {
		return v, nil
	}
	sources, err := c.inner.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(ctx, c.cache, key, sources, ttlSources); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
	return sources, nil
}

func (c *CachedStore) GetSourceByID(ctx context.Context, sourceID int64) (*models.Source, error) {
	key := fmt.Sprintf("source:%d", sourceID)
	if v, err := cache.Get[models.Source](ctx, c.cache, key); err == nil {
		return &v, nil
	}
	src, err := c.inner.GetSourceByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(ctx, c.cache, key, src, ttlSource); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
	return src, nil
}

// channelListResult is a helper type to cache the ListChannels tuple.
type channelListResult struct {
	Channels []models.Channel `json:"channels"`
	Total    int              `json:"total"`
}

func (c *CachedStore) ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error) {
	key := fmt.Sprintf("channels:%s", filterHash(filter))
	if v, err := cache.Get[channelListResult](ctx, c.cache, key); err == nil {
		return v.Channels, v.Total, nil
	}
	channels, total, err := c.inner.ListChannels(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	if err := cache.Set(ctx, c.cache, key, channelListResult{Channels: channels, Total: total}, ttlChannels); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
	return channels, total, nil
}

func (c *CachedStore) GetChannelByID(ctx context.Context, channelID int64) (*models.Channel, error) {
	key := fmt.Sprintf("channel:%d", channelID)
	if v, err := cache.Get[models.Channel](ctx, c.cache, key); err == nil {
		return &v, nil
	}
	ch, err := c.inner.GetChannelByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(ctx, c.cache, key, ch, ttlChannel); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
	return ch, nil
}

func (c *CachedStore) ListGroups(ctx context.Context, sourceID *int64) ([]models.Group, error) {
	sid := "all"
	if sourceID != nil {
		sid = fmt.Sprintf("%d", *sourceID)
	}
	key := fmt.Sprintf("groups:%s", sid)
	if v, err := cache.Get[[]models.Group](ctx, c.cache, key); err == nil {
		return v, nil
	}
	groups, err := c.inner.ListGroups(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(ctx, c.cache, key, groups, ttlGroups); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
	return groups, nil
}

// --- write operations with cache invalidation ---

func (c *CachedStore) CreateOrGetSource(ctx context.Context, name, url string, sourceType int16, userAgent string) (int64, error) {
	id, err := c.inner.CreateOrGetSource(ctx, name, url, sourceType, userAgent)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx, "sources:all")
	return id, nil
}

func (c *CachedStore) UpdateSource(ctx context.Context, sourceID int64, fields SourceUpdate) error {
	if err := c.inner.UpdateSource(ctx, sourceID, fields); err != nil {
		return err
	}
	c.invalidate(ctx, fmt.Sprintf("source:%d", sourceID), "sources:all")
	return nil
}

func (c *CachedStore) DeleteSource(ctx context.Context, sourceID int64) error {
	if err := c.inner.DeleteSource(ctx, sourceID); err != nil {
		return err
	}
	c.invalidate(ctx, fmt.Sprintf("source:%d", sourceID), "sources:all")
	c.invalidatePattern(ctx, "channels:*", "groups:*")
	return nil
}

func (c *CachedStore) UpdateSourceMetadata(ctx context.Context, sourceID int64, epgURL string) error {
	if err := c.inner.UpdateSourceMetadata(ctx, sourceID, epgURL); err != nil {
		return err
	}
	c.invalidate(ctx, fmt.Sprintf("source:%d", sourceID), "sources:all")
	return nil
}

func (c *CachedStore) UpsertChannel(ctx context.Context, ch *models.Channel) (int64, error) {
	id, err := c.inner.UpsertChannel(ctx, ch)
	if err != nil {
		return 0, err
	}
	// Individual channel caches and list caches may be stale.
	c.invalidate(ctx, fmt.Sprintf("channel:%d", id))
	c.invalidatePattern(ctx, "channels:*")
	return id, nil
}

func (c *CachedStore) UpsertChannelHeaders(ctx context.Context, channelID int64, h *models.ChannelHTTPHeaders) error {
	return c.inner.UpsertChannelHeaders(ctx, channelID, h)
}

func (c *CachedStore) ToggleChannelFavorite(ctx context.Context, channelID int64, favorite bool) error {
	if err := c.inner.ToggleChannelFavorite(ctx, channelID, favorite); err != nil {
		return err
	}
	c.invalidate(ctx, fmt.Sprintf("channel:%d", channelID))
	c.invalidatePattern(ctx, "channels:*")
	return nil
}

func (c *CachedStore) RemoveStaleChannels(ctx context.Context, sourceID int64, keepIDs []int64) (int64, error) {
	n, err := c.inner.RemoveStaleChannels(ctx, sourceID, keepIDs)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.invalidatePattern(ctx, "channels:*", "channel:*")
	}
	return n, nil
}

func (c *CachedStore) RemoveOrphanedGroups(ctx context.Context, sourceID int64) (int64, error) {
	n, err := c.inner.RemoveOrphanedGroups(ctx, sourceID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.invalidatePattern(ctx, "groups:*")
	}
	return n, nil
}

// --- passthrough (no caching) ---

func (c *CachedStore) GetOrCreateGroup(ctx context.Context, sourceID int64, name string, image *string) (int64, error) {
	return c.inner.GetOrCreateGroup(ctx, sourceID, name, image)
}

// --- helpers ---

// invalidate deletes exact cache keys, logging any errors.
func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := cache.Del(ctx, c.cache, keys...); err != nil && err != redis.Nil {
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("cache del failed")
	}
}

// invalidatePattern deletes all keys matching the given glob patterns.
func (c *CachedStore) invalidatePattern(ctx context.Context, patterns ...string) {
	for _, p := range patterns {
		if err := cache.DelPattern(ctx, c.cache, p); err != nil {
			c.logger.Warn().Err(err).Str("pattern", p).Msg("cache del pattern failed")
		}
	}
}

// filterHash produces a short deterministic hash for a ChannelFilter so it
// can be used as part of a cache key. Optional fields hash by pointed-to
// value, never by pointer, so equal filters always share a key.
func filterHash(f ChannelFilter) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d|%d",
		optKey(f.SourceID), optKey(f.GroupID), optKey(f.MediaType),
		optKey(f.Favorite), optKey(f.Degraded), f.Search, f.Limit, f.Offset)
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", h[:8])
}

// optKey formats an optional filter field; nil maps to a sentinel distinct
// from any set value.
func optKey[T any](p *T) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%v", *p)
}
