package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the connection settings for the Redis instance backing the
// run dispatcher's streams (C6).
type Config struct {
	Address  string `default:"localhost:6379" env:"REDIS_ADDRESS"`
	Password string `default:""               env:"REDIS_PASSWORD"`
	DB       int    `default:"0"              env:"REDIS_DB"`
}

// ErrEmptyAddress is returned when the dispatcher's Redis address is unset.
var ErrEmptyAddress = errors.New("redis address is required")

// connectionTimeout bounds the startup ping that verifies the dispatcher can
// reach Redis before the daemon starts consuming streams.
const connectionTimeout = 5 * time.Second

// NewClient dials Redis and verifies it's reachable before returning, so a
// misconfigured queue.address fails fast at daemon startup rather than on
// the first enqueue.
func NewClient(cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}
