package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPurger(t *testing.T) (*RedisTagPurger, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTagPurger(client, "test"), s
}

func TestRedisTagPurger_BumpsGeneration(t *testing.T) {
	p, s := newTestPurger(t)
	ctx := context.Background()

	gen, err := p.Generation(ctx, 7, TagAllTimeStats)
	require.NoError(t, err)
	assert.Zero(t, gen)

	require.NoError(t, p.Purge(ctx, 7, TagAllTimeStats))
	require.NoError(t, p.Purge(ctx, 7, TagAllTimeStats))

	gen, err = p.Generation(ctx, 7, TagAllTimeStats)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen)
	// кроме счётчика поколения ничего не пишется
	assert.Equal(t, []string{"test:cache:gen:7:all_time_stats"}, s.Keys())
}

func TestRedisTagPurger_PurgeFailsWhenRedisIsDown(t *testing.T) {
	p, s := newTestPurger(t)
	s.Close()

	err := p.Purge(context.Background(), 7, TagSeasonStats)
	assert.Error(t, err)
}

func TestRedisTagPurger_TenantsAreIsolated(t *testing.T) {
	p, _ := newTestPurger(t)
	ctx := context.Background()

	require.NoError(t, p.Purge(ctx, 7, TagPowerRatings))

	other, err := p.Generation(ctx, 8, TagPowerRatings)
	require.NoError(t, err)
	assert.Zero(t, other)
}
