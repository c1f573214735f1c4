package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Dosada05/matchday/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultLeaseTTL = 10 * time.Minute

// Скрипты проверяют владельца, чтобы не снять или не продлить чужую аренду.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// TenantLease serializes job processing per tenant across processes.
type TenantLease interface {
	Acquire(ctx context.Context, tenantID models.TenantID) (token string, ok bool, err error)
	Extend(ctx context.Context, tenantID models.TenantID, token string) (bool, error)
	Release(ctx context.Context, tenantID models.TenantID, token string) error
}

type RedisTenantLease struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTenantLease(client *redis.Client, ttl time.Duration) *RedisTenantLease {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &RedisTenantLease{client: client, ttl: ttl}
}

func leaseKey(tenantID models.TenantID) string {
	return fmt.Sprintf("matchday:stats:lease:%d", tenantID)
}

func (l *RedisTenantLease) Acquire(ctx context.Context, tenantID models.TenantID) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, leaseKey(tenantID), token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lease for tenant %d: %w", tenantID, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *RedisTenantLease) Extend(ctx context.Context, tenantID models.TenantID, token string) (bool, error) {
	n, err := extendScript.Run(ctx, l.client, []string{leaseKey(tenantID)}, token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to extend lease for tenant %d: %w", tenantID, err)
	}
	return n == 1, nil
}

func (l *RedisTenantLease) Release(ctx context.Context, tenantID models.TenantID, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{leaseKey(tenantID)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lease for tenant %d: %w", tenantID, err)
	}
	return nil
}
