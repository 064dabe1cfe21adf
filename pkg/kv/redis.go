package kv

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "eduportal:kv"

// RedisStorage keeps values in Redis under a key prefix, without expiry.
type RedisStorage struct {
	client *redis.Client
	prefix string
	quota  int64
}

// NewRedisStorage builds a Redis-backed area. quota caps a single value in bytes; zero means unlimited.
func NewRedisStorage(addr, password, prefix string, quota int64) (*RedisStorage, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("kv redis addr is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStorage{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: prefix,
		quota:  quota,
	}, nil
}

func (s *RedisStorage) key(key string) string {
	return s.prefix + ":" + key
}

func (s *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStorage) Set(ctx context.Context, key, value string) error {
	if s.quota > 0 {
		if err := checkQuota(key, value, s.quota); err != nil {
			return err
		}
	}
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

func (s *RedisStorage) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
