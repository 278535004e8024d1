// Package cache keeps the tag catalog and media payloads close to the bot so a
// busy chat does not hit the database for every message.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pbaille/replybot/internal/domain"
)

// Source is the backing store of a CachedCatalog.
type Source interface {
	Tags(ctx context.Context) ([]domain.Tag, error)
	MediaByTag(ctx context.Context, tagText string) ([]domain.Media, error)
	MediaData(ctx context.Context, name string) ([]byte, error)
}

// L2 is a shared byte store consulted before Source for the tag catalog.
type L2 interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

const tagsKey = "tags"

// Config sizes the catalog caches.
type Config struct {
	TagsTTL   time.Duration
	MediaTTL  time.Duration
	MediaSize int
	DataSize  int
}

// DefaultConfig matches the bot defaults.
func DefaultConfig() Config {
	return Config{
		TagsTTL:   time.Hour,
		MediaTTL:  time.Hour,
		MediaSize: 50,
		DataSize:  100,
	}
}

// CachedCatalog serves tags, media lists and media payloads from memory.
// Payloads never expire by age since a media row is immutable once stored.
type CachedCatalog struct {
	src     Source
	l2      L2
	tagsTTL time.Duration
	logger  *slog.Logger

	tags  *TTLCache[struct{}, []domain.Tag]
	media *TTLCache[string, []domain.Media]
	data  *TTLCache[string, []byte]
}

// NewCachedCatalog wraps src. l2 may be nil.
func NewCachedCatalog(src Source, l2 L2, cfg Config, logger *slog.Logger) *CachedCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCatalog{
		src:     src,
		l2:      l2,
		tagsTTL: cfg.TagsTTL,
		logger:  logger,
		tags:    NewTTLCache[struct{}, []domain.Tag](1, cfg.TagsTTL),
		media:   NewTTLCache[string, []domain.Media](cfg.MediaSize, cfg.MediaTTL),
		data:    NewTTLCache[string, []byte](cfg.DataSize, 0),
	}
}

// Tags returns the tag catalog.
func (c *CachedCatalog) Tags(ctx context.Context) ([]domain.Tag, error) {
	if tags, ok := c.tags.Get(struct{}{}); ok {
		return tags, nil
	}

	if tags, ok := c.tagsFromL2(ctx); ok {
		c.tags.Set(struct{}{}, tags)
		return tags, nil
	}

	tags, err := c.src.Tags(ctx)
	if err != nil {
		return nil, err
	}
	c.tags.Set(struct{}{}, tags)
	c.tagsToL2(ctx, tags)
	return tags, nil
}

// MediaByTag returns the media linked to a tag.
func (c *CachedCatalog) MediaByTag(ctx context.Context, tagText string) ([]domain.Media, error) {
	if media, ok := c.media.Get(tagText); ok {
		return media, nil
	}

	media, err := c.src.MediaByTag(ctx, tagText)
	if err != nil {
		return nil, err
	}
	c.media.Set(tagText, media)
	return media, nil
}

// MediaData returns the payload of a media.
func (c *CachedCatalog) MediaData(ctx context.Context, name string) ([]byte, error) {
	if data, ok := c.data.Get(name); ok {
		return data, nil
	}

	data, err := c.src.MediaData(ctx, name)
	if err != nil {
		return nil, err
	}
	c.data.Set(name, data)
	return data, nil
}

// Invalidate drops cached tags and tag media so catalog edits show up at once.
func (c *CachedCatalog) Invalidate(ctx context.Context) {
	c.tags.Clear()
	c.media.Clear()
	if c.l2 == nil {
		return
	}
	if err := c.l2.Delete(ctx, tagsKey); err != nil {
		c.logger.Warn("failed to drop shared tag cache", slog.Any("error", err))
	}
}

func (c *CachedCatalog) tagsFromL2(ctx context.Context) ([]domain.Tag, bool) {
	if c.l2 == nil {
		return nil, false
	}
	raw, ok, err := c.l2.Get(ctx, tagsKey)
	if err != nil {
		c.logger.Warn("failed to read shared tag cache", slog.Any("error", err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var tags []domain.Tag
	if err := json.Unmarshal(raw, &tags); err != nil {
		c.logger.Warn("invalid shared tag cache entry", slog.Any("error", err))
		return nil, false
	}
	return tags, true
}

func (c *CachedCatalog) tagsToL2(ctx context.Context, tags []domain.Tag) {
	if c.l2 == nil {
		return
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		c.logger.Warn("failed to encode tag cache", slog.Any("error", err))
		return
	}
	if err := c.l2.Set(ctx, tagsKey, raw, c.tagsTTL); err != nil {
		c.logger.Warn("failed to write shared tag cache", slog.Any("error", err))
	}
}
