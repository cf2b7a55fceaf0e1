package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthClient_UnreachableServer(t *testing.T) {
	c := NewHealthClient("127.0.0.1:1", "", 0)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := c.Ping(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
	assert.Zero(t, c.PoolStats().IdleConns)
}
