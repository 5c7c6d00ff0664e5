package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/socialfeed/backend/internal/logger"
	"go.uber.org/zap"
)

// PresenceTTL bounds how stale a mirrored online flag can get if the
// server dies without cleaning up.
const PresenceTTL = 90 * time.Second

// RedisClient wraps the redis.Client with centralized connection pooling
type RedisClient struct {
	client *redis.Client
}

// Singleton instance (package-level)
var globalRedis *RedisClient

// NewRedisClient creates and initializes a Redis client with connection pooling.
// Requires REDIS_HOST and optionally REDIS_PORT, REDIS_PASSWORD environment variables.
func NewRedisClient(host string, port string, password string) (*RedisClient, error) {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.ErrorWithFields("Failed to connect to Redis", err)
		return nil, err
	}

	rc := &RedisClient{client: client}
	globalRedis = rc

	logger.Log.Info("✅ Redis client connected successfully",
		zap.String("address", addr),
	)

	return rc, nil
}

// GetRedisClient returns the global Redis client instance
func GetRedisClient() *RedisClient {
	return globalRedis
}

// Close closes the Redis connection gracefully
func (rc *RedisClient) Close() error {
	if rc == nil || rc.client == nil {
		return nil
	}
	return rc.client.Close()
}

// Get retrieves a value from Redis
func (rc *RedisClient) Get(ctx context.Context, key string) (string, error) {
	return rc.client.Get(ctx, key).Result()
}

// Set stores a value in Redis
func (rc *RedisClient) Set(ctx context.Context, key string, value interface{}) error {
	return rc.client.Set(ctx, key, value, 0).Err()
}

// SetEx stores a value in Redis with expiration
func (rc *RedisClient) SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return rc.client.Set(ctx, key, value, ttl).Err()
}

// Del deletes one or more keys from Redis
func (rc *RedisClient) Del(ctx context.Context, keys ...string) error {
	return rc.client.Del(ctx, keys...).Err()
}

// Exists checks if one or more keys exist in Redis
func (rc *RedisClient) Exists(ctx context.Context, keys ...string) (int64, error) {
	return rc.client.Exists(ctx, keys...).Result()
}

// IncrBy increments a key by a value
func (rc *RedisClient) IncrBy(ctx context.Context, key string, increment int64) (int64, error) {
	return rc.client.IncrBy(ctx, key, increment).Result()
}

// GetInt retrieves an integer value from Redis
func (rc *RedisClient) GetInt(ctx context.Context, key string) (int64, error) {
	return rc.client.Get(ctx, key).Int64()
}

// Expire sets an expiration timeout on a key
func (rc *RedisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return rc.client.Expire(ctx, key, ttl).Err()
}

// TTL returns the time-to-live for a key
func (rc *RedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rc.client.TTL(ctx, key).Result()
}

// Ping tests the Redis connection
func (rc *RedisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// presenceKey names the mirrored online flag for a user
func presenceKey(userID string) string {
	return "presence:" + userID
}

// SetUserOnline mirrors a user's online state so HTTP handlers can read it
// without touching hub internals. The hub refreshes the key on activity;
// the TTL cleans up after an unclean shutdown.
func (rc *RedisClient) SetUserOnline(ctx context.Context, userID string) error {
	return rc.client.Set(ctx, presenceKey(userID), "1", PresenceTTL).Err()
}

// SetUserOffline clears the mirrored online state
func (rc *RedisClient) SetUserOffline(ctx context.Context, userID string) error {
	return rc.client.Del(ctx, presenceKey(userID)).Err()
}

// IsUserOnline reports whether the user has a mirrored online flag
func (rc *RedisClient) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	n, err := rc.client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
