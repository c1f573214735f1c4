package db

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectRedis(t *testing.T) {
	s := miniredis.RunT(t)

	client, err := ConnectRedis("redis://"+s.Addr()+"/0", time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
}

func TestConnectRedis_BadURL(t *testing.T) {
	_, err := ConnectRedis("http://nope", time.Second)
	assert.Error(t, err)
}
