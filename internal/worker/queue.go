package worker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue is a FIFO of raw JSON payloads.
type Queue interface {
	// Pop blocks up to timeout for the next item. ok is false on timeout.
	Pop(ctx context.Context, timeout time.Duration) (item string, ok bool, err error)
	// TryPop returns the next item without blocking.
	TryPop(ctx context.Context) (item string, ok bool, err error)
	// Push appends items to the tail for retry.
	Push(ctx context.Context, items ...string) error
}

// RedisQueue is a Queue backed by a Redis list.
type RedisQueue struct {
	rdb  *redis.Client
	name string
}

// NewRedisQueue creates a RedisQueue over the list name.
func NewRedisQueue(rdb *redis.Client, name string) *RedisQueue {
	return &RedisQueue{rdb: rdb, name: name}
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (string, bool, error) {
	// BLPop blocks until an item is available or timeout.
	result, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if len(result) < 2 {
		return "", false, nil
	}
	return result[1], true, nil
}

func (q *RedisQueue) TryPop(ctx context.Context) (string, bool, error) {
	item, err := q.rdb.LPop(ctx, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return item, true, nil
}

func (q *RedisQueue) Push(ctx context.Context, items ...string) error {
	if len(items) == 0 {
		return nil
	}
	args := make([]interface{}, len(items))
	for i, it := range items {
		args[i] = it
	}
	return q.rdb.RPush(ctx, q.name, args...).Err()
}
