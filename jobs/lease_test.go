package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTenantLease(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	lease := NewRedisTenantLease(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)

	token, ok, err := lease.Acquire(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = lease.Acquire(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must wait")

	_, ok, err = lease.Acquire(ctx, 6)
	require.NoError(t, err)
	assert.True(t, ok, "other tenants are independent")

	// чужой токен не снимает аренду
	require.NoError(t, lease.Release(ctx, 5, "someone-else"))
	assert.True(t, mr.Exists(leaseKey(5)))

	held, err := lease.Extend(ctx, 5, "someone-else")
	require.NoError(t, err)
	assert.False(t, held)

	mr.FastForward(50 * time.Second)
	held, err = lease.Extend(ctx, 5, token)
	require.NoError(t, err)
	assert.True(t, held)
	mr.FastForward(50 * time.Second)
	assert.True(t, mr.Exists(leaseKey(5)), "extended lease outlives the original ttl")

	require.NoError(t, lease.Release(ctx, 5, token))
	assert.False(t, mr.Exists(leaseKey(5)))

	_, ok, err = lease.Acquire(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisTenantLease_Expires(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	lease := NewRedisTenantLease(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Second)

	_, ok, err := lease.Acquire(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = lease.Acquire(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok, "a crashed holder's lease runs out")
}
