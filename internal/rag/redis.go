package rag

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/chem-advisor/internal/model"
)

// RedisCache shares cached search results across processes.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to redisURL (redis://...) and pings it.
func NewRedisCache(ctx context.Context, redisURL, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, eris.Wrap(err, "rag: parse redis url")
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrap(err, "rag: redis ping")
	}

	return &RedisCache{client: client, prefix: prefix}, nil
}

// Get returns nil on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (*model.SearchResult, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "rag: redis get")
	}

	var r model.SearchResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "rag: decode cached result")
	}
	return &r, nil
}

// Set stores r as JSON with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, r *model.SearchResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "rag: encode result")
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return eris.Wrap(err, "rag: redis set")
	}
	return nil
}

// Close closes the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
