package crud

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Storage is the key-value boundary a Store persists to. Load returns nil
// bytes for a key that was never saved.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

// RedisStorage keeps every store snapshot under prefix+key.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStorage returns a Storage backed by client.
func NewRedisStorage(client redis.UniversalClient, prefix string) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix}
}

// Load implements Storage.
func (s *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return raw, err
}

// Save implements Storage. The whole list is written in one SET.
func (s *RedisStorage) Save(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}
