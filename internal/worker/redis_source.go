package worker

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const blockTimeout = 5 * time.Second

type redisSource struct {
	redisClient *redis.Client
	key         string
	timeout     time.Duration
}

// NewRedisSource pops notifications from a Redis list. Producers LPUSH, so
// BRPOP yields them in arrival order.
func NewRedisSource(redisClient *redis.Client, key string) Source {
	return &redisSource{redisClient: redisClient, key: key, timeout: blockTimeout}
}

func (r *redisSource) Next(ctx context.Context) (*Message, error) {
	result, err := r.redisClient.BRPop(ctx, r.timeout, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	// result is [key, value]
	return &Message{Data: []byte(result[1])}, nil
}

func (r *redisSource) Close() error {
	return nil
}

// Enqueue pushes a raw notification onto the list.
func Enqueue(ctx context.Context, redisClient *redis.Client, key string, data []byte) error {
	return redisClient.LPush(ctx, key, data).Err()
}
