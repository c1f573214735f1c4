package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/matchday/models"
	"github.com/redis/go-redis/v9"
)

// RedisTagPurger keeps a generation counter per tenant and tag. Readers build cache
// keys from the current generation, so bumping it on purge makes every entry written
// under the old generation unreachable; those entries age out by their own TTL.
type RedisTagPurger struct {
	client *redis.Client
	prefix string
}

func NewRedisTagPurger(client *redis.Client, prefix string) *RedisTagPurger {
	if prefix == "" {
		prefix = "matchday"
	}
	return &RedisTagPurger{client: client, prefix: prefix}
}

func (p *RedisTagPurger) generationKey(tenantID models.TenantID, tag string) string {
	return fmt.Sprintf("%s:cache:gen:%d:%s", p.prefix, tenantID, tag)
}

func (p *RedisTagPurger) Purge(ctx context.Context, tenantID models.TenantID, tag string) error {
	if err := p.client.Incr(ctx, p.generationKey(tenantID, tag)).Err(); err != nil {
		return fmt.Errorf("failed to purge tag %s: %w", tag, err)
	}
	return nil
}

// Generation returns the current generation of a tag, zero if it was never purged.
func (p *RedisTagPurger) Generation(ctx context.Context, tenantID models.TenantID, tag string) (int64, error) {
	gen, err := p.client.Get(ctx, p.generationKey(tenantID, tag)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read generation of tag %s: %w", tag, err)
	}
	return gen, nil
}
