// Package redis holds the connection backing the content hash store.
package redis

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/fern/pkg/metrics"
)

const dialCheckTimeout = 5 * time.Second

type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client exposes the few hash commands the hash store needs, timing each one.
type Client struct {
	rdb    *redis.Client
	logger ectologger.Logger
}

// NewClient dials Redis and fails unless it answers a PING.
func NewClient(ctx context.Context, cfg Config, logger ectologger.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialCheckTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "redis at %s is unreachable", cfg.Addr())
	}

	logger.WithField("addr", cfg.Addr()).Info("Connected to Redis")
	return &Client{rdb: rdb, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func observe(op string) func() {
	start := time.Now()
	return func() { metrics.RecordRedisOperation(op, time.Since(start).Seconds()) }
}

// HSet writes all pairs into the hash at key.
func (c *Client) HSet(ctx context.Context, key string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	defer observe("hset")()

	if err := c.rdb.HSet(ctx, key, values).Err(); err != nil {
		return errors.Wrapf(err, "hset %s", key)
	}
	return nil
}

// HMGet returns the requested fields that exist in the hash at key.
func (c *Client) HMGet(ctx context.Context, key string, fields ...string) (map[string]string, error) {
	found := make(map[string]string, len(fields))
	if len(fields) == 0 {
		return found, nil
	}
	defer observe("hmget")()

	values, err := c.rdb.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "hmget %s", key)
	}
	for i, value := range values {
		if s, ok := value.(string); ok {
			found[fields[i]] = s
		}
	}
	return found, nil
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	defer observe("expire")()

	if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return errors.Wrapf(err, "expire %s", key)
	}
	return nil
}
