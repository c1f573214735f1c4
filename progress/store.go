package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/matchday/models"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("no progress recorded for fixture")

const DefaultTTL = 30 * time.Minute

// RedisStore holds per-fixture progress with an explicit TTL: entries disappear on
// their own once nothing updates them, no matter which process wrote them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func key(tenantID models.TenantID, fixtureID int) string {
	return fmt.Sprintf("matchday:progress:%d:%d", tenantID, fixtureID)
}

func (s *RedisStore) Set(ctx context.Context, tenantID models.TenantID, p models.FixtureProgress) error {
	if !tenantID.Valid() {
		return errors.New("tenant id is required")
	}
	if p.Percent < 0 {
		p.Percent = 0
	} else if p.Percent > 100 {
		p.Percent = 100
	}
	p.UpdatedAt = s.now().UTC()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	if err := s.client.Set(ctx, key(tenantID, p.FixtureID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store progress for fixture %d: %w", p.FixtureID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, tenantID models.TenantID, fixtureID int) (*models.FixtureProgress, error) {
	data, err := s.client.Get(ctx, key(tenantID, fixtureID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress for fixture %d: %w", fixtureID, err)
	}
	var p models.FixtureProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	return &p, nil
}

func (s *RedisStore) Clear(ctx context.Context, tenantID models.TenantID, fixtureID int) error {
	return s.client.Del(ctx, key(tenantID, fixtureID)).Err()
}
