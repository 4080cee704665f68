package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-delivery/internal/config"
	"github.com/stemsi/exstem-delivery/internal/model"
)

// TemplateCache keeps resolved template bundles in Redis as JSON.
type TemplateCache struct {
	rdb *redis.Client
}

// NewTemplateCache creates a new TemplateCache.
func NewTemplateCache(rdb *redis.Client) *TemplateCache {
	return &TemplateCache{rdb: rdb}
}

// Get returns the cached bundle, or nil without an error on a miss.
func (c *TemplateCache) Get(ctx context.Context, templateID uuid.UUID) (*model.TemplateBundle, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.TemplateBundleKey(templateID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get bundle: %w", err)
	}

	var b model.TemplateBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal bundle: %w", err)
	}
	return &b, nil
}

// Set stores a bundle with the given TTL.
func (c *TemplateCache) Set(ctx context.Context, b *model.TemplateBundle, ttl time.Duration) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	return c.rdb.Set(ctx, config.CacheKey.TemplateBundleKey(b.Template.ID.String()), data, ttl).Err()
}

// Delete removes a cached bundle.
func (c *TemplateCache) Delete(ctx context.Context, templateID uuid.UUID) error {
	return c.rdb.Del(ctx, config.CacheKey.TemplateBundleKey(templateID.String())).Err()
}
