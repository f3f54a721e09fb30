package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each indicator in a Redis hash ({prefix}{uid}) that
// expires after TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisConfig struct {
	Addr      string
	KeyPrefix string
	TTL       time.Duration
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "registry:session:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) key(uid string) string { return r.prefix + uid }

func (r *RedisStore) Put(ctx context.Context, in Indicator) error {
	if in.UserID == "" {
		return errMissingUID
	}
	key := r.key(in.UserID)
	values := make(map[string]interface{}, 3)
	for k, v := range in.Fields() {
		values[k] = v
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, values)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session indicator: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, uid string) error {
	if err := r.client.Del(ctx, r.key(uid)).Err(); err != nil {
		return fmt.Errorf("failed to clear session indicator: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, uid string) (Indicator, error) {
	if uid == "" {
		return Indicator{}, nil
	}
	m, err := r.client.HGetAll(ctx, r.key(uid)).Result()
	if err != nil {
		return Indicator{}, fmt.Errorf("failed to read session indicator: %w", err)
	}
	return FromFields(m), nil
}

func (r *RedisStore) Close() error { return r.client.Close() }
