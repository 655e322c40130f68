package database

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig locates the Redis instance backing the resolution cache.
// Timeout bounds every cache command; a slow cache must not hold up a
// resolution that could go straight to the search engine instead.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Timeout  time.Duration
}

// DefaultRedisConfig points at a local Redis with a short command timeout.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Host:    "localhost",
		Port:    6379,
		Timeout: 100 * time.Millisecond,
	}
}

// Addr is host:port, IPv6 hosts bracketed.
func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c RedisConfig) options() *redis.Options {
	opts := &redis.Options{
		Addr:     c.Addr(),
		Password: c.Password,
		DB:       c.DB,
		// cache misses are cheap, retrying a failed lookup is not
		MaxRetries: 1,
	}
	if c.Timeout > 0 {
		opts.DialTimeout = c.Timeout
		opts.ReadTimeout = c.Timeout
		opts.WriteTimeout = c.Timeout
	}
	return opts
}

// NewRedisClient connects to the resolution cache. The client is returned
// only once a PING succeeds, so a misconfigured cache fails startup rather
// than every lookup.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(cfg.options())

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr(), err)
	}
	return client, nil
}
