package intelligence

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned by RedisClient implementations when a key is absent
var ErrCacheMiss = errors.New("cache miss")

// RedisClient is the subset of Redis the snapshot cache needs
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// GoRedisAdapter wraps a go-redis client to implement RedisClient
type GoRedisAdapter struct {
	client *redis.Client
}

// NewGoRedisClient creates a new Redis client from a URL and returns an adapter.
// URL format: redis://[:password@]host:port[/db] or rediss:// for TLS
func NewGoRedisClient(ctx context.Context, redisURL string) (*GoRedisAdapter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &GoRedisAdapter{client: client}, nil
}

// Get retrieves a value from Redis, mapping redis.Nil to ErrCacheMiss
func (a *GoRedisAdapter) Get(ctx context.Context, key string) (string, error) {
	v, err := a.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

// Set stores a value in Redis with TTL
func (a *GoRedisAdapter) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return a.client.Set(ctx, key, value, ttl).Err()
}

// Ping tests the Redis connection
func (a *GoRedisAdapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (a *GoRedisAdapter) Close() error {
	return a.client.Close()
}
