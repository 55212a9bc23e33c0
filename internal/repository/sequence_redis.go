package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

type redisSequenceStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisSequenceStore keeps counters as plain Redis integers under prefix.
// INCR is atomic, so concurrent allocators never hand out the same value.
func NewRedisSequenceStore(rdb *redis.Client, prefix string) SequenceStore {
	return &redisSequenceStore{rdb: rdb, prefix: prefix}
}

func (s *redisSequenceStore) Increment(ctx context.Context, key string) (int64, error) {
	return s.rdb.Incr(ctx, s.prefix+key).Result()
}

func (s *redisSequenceStore) Peek(ctx context.Context, key string) (int64, error) {
	v, err := s.rdb.Get(ctx, s.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (s *redisSequenceStore) Set(ctx context.Context, key string, value int64) error {
	return s.rdb.Set(ctx, s.prefix+key, value, 0).Err()
}
