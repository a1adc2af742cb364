package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/krshsl/interviewcoach/backend/models"
	"github.com/redis/go-redis/v9"
)

// publishedCatalogsKey carries a schema version so a model change never reads stale JSON
const publishedCatalogsKey = "interviewcoach:catalogs:published:v1"

// CatalogCache caches the published catalog listing
type CatalogCache interface {
	GetPublished(ctx context.Context) ([]models.InterviewCatalog, bool)
	SetPublished(ctx context.Context, catalogs []models.InterviewCatalog)
	Invalidate(ctx context.Context)
}

// NoopCatalogCache never hits
type NoopCatalogCache struct{}

func (NoopCatalogCache) GetPublished(context.Context) ([]models.InterviewCatalog, bool) {
	return nil, false
}
func (NoopCatalogCache) SetPublished(context.Context, []models.InterviewCatalog) {}
func (NoopCatalogCache) Invalidate(context.Context)                              {}

// RedisCatalogCache stores the listing as JSON with a TTL. Redis failures degrade to a miss.
type RedisCatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCatalogCache(client *redis.Client, ttl time.Duration) *RedisCatalogCache {
	return &RedisCatalogCache{client: client, ttl: ttl}
}

func (c *RedisCatalogCache) GetPublished(ctx context.Context) ([]models.InterviewCatalog, bool) {
	data, err := c.client.Get(ctx, publishedCatalogsKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Catalog cache read failed", "error", err)
		}
		return nil, false
	}
	var catalogs []models.InterviewCatalog
	if err := json.Unmarshal(data, &catalogs); err != nil {
		slog.Warn("Catalog cache entry is corrupt", "error", err)
		return nil, false
	}
	return catalogs, true
}

func (c *RedisCatalogCache) SetPublished(ctx context.Context, catalogs []models.InterviewCatalog) {
	data, err := json.Marshal(catalogs)
	if err != nil {
		slog.Warn("Failed to encode catalogs for cache", "error", err)
		return
	}
	if err := c.client.Set(ctx, publishedCatalogsKey, data, c.ttl).Err(); err != nil {
		slog.Warn("Catalog cache write failed", "error", err)
	}
}

func (c *RedisCatalogCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, publishedCatalogsKey).Err(); err != nil {
		slog.Warn("Catalog cache invalidation failed", "error", err)
	}
}

// NewRedisClient connects to the Redis instance at url and verifies it answers
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
