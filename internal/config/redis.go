package config

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a Redis client for the job queue and checks the
// connection with a PING.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		cfg.Addr = envOr("REDIS_ADDR", "127.0.0.1:6379")
	}

	log.Printf("NewRedisClient: addr=%s db=%d passwordSet=%v", cfg.Addr, cfg.DB, cfg.Password != "")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", cfg.Addr, err)
	}

	log.Printf("NewRedisClient: successfully connected to Redis")
	return client, nil
}
