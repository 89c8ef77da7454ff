// internal/documents/cache.go
package documents

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"admissions-workers/internal/common/logger"
)

const cacheKeyPrefix = "docs:"

// CachedProvider is a read-through cache in front of another provider.
// Only complete fact sets are cached; a result with any document
// category still missing is re-fetched every time so a late upload is
// picked up on the next validation run.
type CachedProvider struct {
	inner  Provider
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedProvider(inner Provider, redisClient *redis.Client, ttl time.Duration, log logger.Logger) *CachedProvider {
	return &CachedProvider{
		inner:  inner,
		redis:  redisClient,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "document-cache"}),
	}
}

func (p *CachedProvider) Fetch(ctx context.Context, email string) (*Facts, error) {
	key := cacheKeyPrefix + email

	cached, err := p.redis.Get(ctx, key).Result()
	if err == nil {
		var facts Facts
		if err := json.Unmarshal([]byte(cached), &facts); err == nil {
			return &facts, nil
		}
		// Corrupt entry, fall through to the source.
		p.redis.Del(ctx, key)
	} else if err != redis.Nil {
		p.logger.Warn("cache read failed, falling back to source", map[string]interface{}{
			"email": email,
			"error": err.Error(),
		})
	}

	facts, err := p.inner.Fetch(ctx, email)
	if err != nil {
		return nil, err
	}
	if !facts.Complete() {
		return facts, nil
	}

	if data, err := json.Marshal(facts); err == nil {
		if err := p.redis.Set(ctx, key, data, p.ttl).Err(); err != nil {
			p.logger.Warn("cache write failed", map[string]interface{}{
				"email": email,
				"error": err.Error(),
			})
		}
	}
	return facts, nil
}
