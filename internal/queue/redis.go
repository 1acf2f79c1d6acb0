package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list holding pending jobs.
const DefaultRedisKey = "learnlog:resolve"

// Redis is a queue backed by a Redis list: LPUSH to enqueue, BRPOP to dequeue.
type Redis struct {
	client *redis.Client
	key    string
	block  time.Duration
}

var _ Queue = (*Redis)(nil)

// NewRedis creates a Redis-backed queue. The client is owned by the caller.
func NewRedis(client *redis.Client, key string) (*Redis, error) {
	if client == nil {
		return nil, errors.New("queue: redis client is required")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key, block: 5 * time.Second}, nil
}

// Enqueue implements Queue.
func (q *Redis) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("queue: lpush: %w", err)
	}
	return nil
}

// Dequeue implements Queue. It polls with BRPOP so cancellation of ctx is
// observed within one block interval.
func (q *Redis) Dequeue(ctx context.Context) (Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}
		vals, err := q.client.BRPop(ctx, q.block, q.key).Result()
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return Job{}, fmt.Errorf("queue: brpop: %w", err)
		}
		// BRPOP replies with [key, value].
		if len(vals) != 2 {
			return Job{}, fmt.Errorf("queue: unexpected brpop reply of %d elements", len(vals))
		}
		var job Job
		if err := json.Unmarshal([]byte(vals[1]), &job); err != nil {
			return Job{}, fmt.Errorf("queue: unmarshal job: %w", err)
		}
		return job, nil
	}
}

// Len returns the number of pending jobs.
func (q *Redis) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Close implements Queue. The client stays open.
func (q *Redis) Close() error {
	return nil
}
