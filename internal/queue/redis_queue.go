package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list used when no queue key is configured.
const DefaultKey = "jobs:segment"

// RedisQueue implements Queue on a Redis list (RPUSH / BLPOP).
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a Redis-backed queue on the given list key.
func NewRedisQueue(ctx context.Context, client *redis.Client, key string) (*RedisQueue, error) {
	if key == "" {
		key = DefaultKey
	}

	log.Printf("NewRedisQueue: key=%s", key)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisQueue{client: client, key: key}, nil
}

// Key returns the Redis list key.
func (r *RedisQueue) Key() string {
	return r.key
}

// Enqueue adds a job to the tail of the list.
func (r *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := r.client.RPush(ctx, r.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push job to %s: %w", r.key, err)
	}

	log.Printf("Enqueue: key=%s type=%s payloadSize=%d", r.key, job.Type, len(data))
	return nil
}

// Dequeue blocks on BLPOP until a job is available or ctx is done.
func (r *RedisQueue) Dequeue(ctx context.Context) (Job, error) {
	type result struct {
		val []string
		err error
	}
	resultChan := make(chan result, 1)

	go func() {
		val, err := r.client.BLPop(ctx, 0, r.key).Result()
		resultChan <- result{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case res := <-resultChan:
		if res.err != nil {
			if errors.Is(res.err, redis.Nil) {
				return Job{}, ctx.Err()
			}
			return Job{}, fmt.Errorf("failed to pop from %s: %w", r.key, res.err)
		}

		if len(res.val) < 2 {
			return Job{}, fmt.Errorf("invalid BLPOP reply: expected 2 elements, got %d", len(res.val))
		}

		var job Job
		if err := json.Unmarshal([]byte(res.val[1]), &job); err != nil {
			return Job{}, fmt.Errorf("failed to unmarshal job: %w", err)
		}

		log.Printf("Dequeue: key=%s type=%s createdAt=%s", r.key, job.Type, job.CreatedAt.Format(time.RFC3339))
		return job, nil
	}
}
