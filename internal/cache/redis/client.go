// Package redis is the Fast Lookup Store (component B): materialized
// blacklist rules, offer routing entries, reliable-queue lists, and the
// prompt cache, all held in Redis. It supplies the raw client plus the
// key-schema constants other components (materializer, decision engine,
// queue) build keys from.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autoguard/cloak/internal/config"
)

// NewClient parses cfg.URL and dials Redis, mirroring the teacher's
// distlock.RedisLock client construction (redis.ParseURL + ping-verify).
func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = cfg.DialTimeout()

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
