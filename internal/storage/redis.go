package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisKV keeps progress and notes in redis under prefix:<key>.
type RedisKV struct {
	rdb    *goredis.Client
	prefix string
}

func NewRedisKV(ctx context.Context, addr, prefix string) (*RedisKV, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisKV{rdb: rdb, prefix: prefix}, nil
}

func (r *RedisKV) Get(ctx context.Context, key Key) (string, bool, error) {
	val, err := r.rdb.Get(ctx, r.redisKey(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key Key, value string) error {
	if err := r.rdb.Set(ctx, r.redisKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisKV) Close() error {
	return r.rdb.Close()
}

func (r *RedisKV) redisKey(key Key) string {
	if r.prefix == "" {
		return key.String()
	}
	return r.prefix + ":" + key.String()
}
