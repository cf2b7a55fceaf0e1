package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PoolStats is a snapshot of the client connection pool
type PoolStats struct {
	TotalConns uint32
	IdleConns  uint32
	StaleConns uint32
	Hits       uint32
	Misses     uint32
	Timeouts   uint32
}

// HealthClient wraps a Redis client for the cache health probe
type HealthClient struct {
	client *redis.Client
}

// NewHealthClient creates a client without dialing; connectivity is checked by Ping
func NewHealthClient(addr, password string, db int) *HealthClient {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     4,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaxRetries:   1,
	})

	return &HealthClient{client: client}
}

// Ping sends PING and returns the round-trip time
func (c *HealthClient) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("redis ping failed: %w", err)
	}
	return time.Since(start), nil
}

// PoolStats returns connection pool statistics
func (c *HealthClient) PoolStats() PoolStats {
	s := c.client.PoolStats()
	return PoolStats{
		TotalConns: s.TotalConns,
		IdleConns:  s.IdleConns,
		StaleConns: s.StaleConns,
		Hits:       s.Hits,
		Misses:     s.Misses,
		Timeouts:   s.Timeouts,
	}
}

// Close closes the client
func (c *HealthClient) Close() error {
	return c.client.Close()
}
