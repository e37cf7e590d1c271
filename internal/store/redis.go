package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/mmcdole/drinks/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis cache backend
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// Namespace prefixes every key, default "drinks:cache"
	Namespace string
}

// RedisCacheStore implements domain.CacheStorage on Redis.
// Each generation is a hash (field = request key, value = JSON response);
// a set holds the generation names. Multi-key writes run in MULTI/EXEC.
type RedisCacheStore struct {
	client    *redis.Client
	namespace string
}

var _ domain.CacheStorage = (*RedisCacheStore)(nil)

// NewRedisCacheStore connects to Redis and verifies the connection
func NewRedisCacheStore(ctx context.Context, opts RedisOptions) (*RedisCacheStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheStoreFromClient(rdb, opts.Namespace), nil
}

// NewRedisCacheStoreFromClient wraps an existing client
func NewRedisCacheStoreFromClient(client *redis.Client, namespace string) *RedisCacheStore {
	if namespace == "" {
		namespace = "drinks:cache"
	}
	return &RedisCacheStore{client: client, namespace: namespace}
}

func (s *RedisCacheStore) Close() error {
	return s.client.Close()
}

func (s *RedisCacheStore) namesKey() string {
	return s.namespace + ":generations"
}

func (s *RedisCacheStore) generationKey(name string) string {
	return s.namespace + ":gen:" + name
}

func (s *RedisCacheStore) Names(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cache generations: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

func (s *RedisCacheStore) Has(ctx context.Context, name string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.namesKey(), name).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cache generation %s: %w", name, err)
	}
	return ok, nil
}

func (s *RedisCacheStore) Match(ctx context.Context, names []string, key string) (*domain.CachedResponse, bool, error) {
	for _, name := range names {
		data, err := s.client.HGet(ctx, s.generationKey(name), key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, false, fmt.Errorf("failed to read cache: %w", err)
		}

		var resp domain.CachedResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, false, fmt.Errorf("failed to decode cached response for %s: %w", key, err)
		}
		return &resp, true, nil
	}
	return nil, false, nil
}

func (s *RedisCacheStore) Put(ctx context.Context, name, key string, resp *domain.CachedResponse) error {
	return s.PutAll(ctx, name, map[string]*domain.CachedResponse{key: resp})
}

// PutAll writes every entry and registers the generation in one transaction
func (s *RedisCacheStore) PutAll(ctx context.Context, name string, entries map[string]*domain.CachedResponse) error {
	fields := make(map[string]any, len(entries))
	for key, resp := range entries {
		data, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", key, err)
		}
		fields[key] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(fields) > 0 {
			pipe.HSet(ctx, s.generationKey(name), fields)
		}
		pipe.SAdd(ctx, s.namesKey(), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write cache generation %s: %w", name, err)
	}
	return nil
}

func (s *RedisCacheStore) Delete(ctx context.Context, name string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.generationKey(name))
		pipe.SRem(ctx, s.namesKey(), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache generation %s: %w", name, err)
	}
	return nil
}
