package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// PromptCacheTTL bounds how long a cached prompt body is trusted before a
// miss forces a re-read from A. ActivateVersionExclusive also actively
// invalidates the key, so this is a safety net rather than the primary
// invalidation path, mirroring the offer routing cache's offerCacheTTL.
const PromptCacheTTL = 10 * time.Minute

// PromptCache is the prompt:<name> read-through cache required by spec.md
// §4.B: a single Redis string per prompt name holding its active version's
// content, read by the generate job on the hot path and invalidated the
// moment an operator activates a different version.
type PromptCache struct {
	rdb *redis.Client
}

func NewPromptCache(rdb *redis.Client) *PromptCache {
	return &PromptCache{rdb: rdb}
}

// Get returns the cached content for name, or ("", false) on a miss.
func (c *PromptCache) Get(ctx context.Context, name string) (string, bool) {
	val, err := c.rdb.Get(ctx, PromptCacheKey(name)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Set populates prompt:<name> with content.
func (c *PromptCache) Set(ctx context.Context, name, content string) error {
	return c.rdb.Set(ctx, PromptCacheKey(name), content, PromptCacheTTL).Err()
}

// Invalidate drops prompt:<name>. Callers must call this only after the
// activating transaction has committed, so a racing reader never observes
// an invalidated key repopulate with the version that's about to be
// deactivated (activation-then-invalidate, per spec.md §5).
func (c *PromptCache) Invalidate(ctx context.Context, name string) error {
	return c.rdb.Del(ctx, PromptCacheKey(name)).Err()
}
