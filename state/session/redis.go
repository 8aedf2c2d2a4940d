package session

import (
	"context"
	"fmt"
	"time"

	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/redis/go-redis/v9"
)

const updateRetries = 8

type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address  string
	Password string
	DB       int
	// KeyPrefix namespaces every key, e.g. "nostrweb:".
	KeyPrefix string
	// TTL is refreshed on every write; it is the session lifetime.
	TTL time.Duration
}

// RedisStore shares session state between server replicas.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}
	library.LogCLI(fmt.Sprintf("redis session store at %s db %d", cfg.Address, cfg.DB), 4)
	return &RedisStore{client: client, prefix: cfg.KeyPrefix, ttl: cfg.TTL}, nil
}

func (r *RedisStore) key(k string) string { return r.prefix + k }

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.key(key), value, r.ttl).Err()
}

func (r *RedisStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	scoped := make([]string, len(keys))
	for i, k := range keys {
		scoped[i] = r.key(k)
	}
	return r.client.Del(ctx, scoped...).Err()
}

func (r *RedisStore) Take(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.GetDel(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Update runs fn under WATCH and retries when another writer touched the key first.
func (r *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	k := r.key(key)
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, k).Result()
		ok := true
		if err == redis.Nil {
			ok, err = false, nil
		}
		if err != nil {
			return err
		}
		next, keep := fn(current, ok)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if keep {
				pipe.Set(ctx, k, next, r.ttl)
			} else {
				pipe.Del(ctx, k)
			}
			return nil
		})
		return err
	}
	for i := 0; i < updateRetries; i++ {
		err := r.client.Watch(ctx, txf, k)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return fmt.Errorf("update of %s lost %d races", key, updateRetries)
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
