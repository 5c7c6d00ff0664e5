package search

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedClient wraps the search client with Redis caching
type CachedClient struct {
	client *Client
	redis  *redis.Client
	ttl    time.Duration
}

// NewCachedClient creates a new search client with Redis caching
func NewCachedClient(searchClient *Client) (*CachedClient, error) {
	// Get Redis URL from environment
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	// Parse Redis URL and create client
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		// If Redis is unavailable, return client without caching
		fmt.Printf("Warning: Failed to connect to Redis, search will work without caching: %v\n", err)
		return &CachedClient{
			client: searchClient,
			redis:  nil,
			ttl:    5 * time.Minute,
		}, nil
	}

	rdb := redis.NewClient(opt)

	// Test connection
	_, err = rdb.Ping(context.Background()).Result()
	if err != nil {
		fmt.Printf("Warning: Redis ping failed, search will work without caching: %v\n", err)
		return &CachedClient{
			client: searchClient,
			redis:  nil,
			ttl:    5 * time.Minute,
		}, nil
	}

	return &CachedClient{
		client: searchClient,
		redis:  rdb,
		ttl:    5 * time.Minute, // 5 minute cache TTL for search results
	}, nil
}

// cacheKey generates a cache key for the search query
func (c *CachedClient) cacheKey(prefix string, params interface{}) string {
	data, _ := json.Marshal(params)
	hash := md5.Sum(data)
	return fmt.Sprintf("search:%s:%x", prefix, hash)
}

// SearchUsers searches for users with caching
func (c *CachedClient) SearchUsers(ctx context.Context, query string, limit, offset int) (*SearchUsersResult, error) {
	// If Redis is unavailable, fall back to direct search
	if c.redis == nil {
		return c.client.SearchUsers(ctx, query, limit, offset)
	}

	// Try to get from cache
	cacheParams := map[string]interface{}{
		"query":  query,
		"limit":  limit,
		"offset": offset,
	}
	cacheKey := c.cacheKey("users", cacheParams)
	cached, err := c.redis.Get(ctx, cacheKey).Result()
	if err == nil {
		// Cache hit - parse and return
		var result SearchUsersResult
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			return &result, nil
		}
	}

	// Cache miss - perform search
	result, err := c.client.SearchUsers(ctx, query, limit, offset)
	if err != nil {
		return result, err
	}

	// Store in cache
	if result != nil {
		if data, err := json.Marshal(result); err == nil {
			c.redis.Set(ctx, cacheKey, data, c.ttl)
		}
	}

	return result, nil
}

// IndexUser writes through to the search index and drops cached results
// that may now be stale
func (c *CachedClient) IndexUser(ctx context.Context, userID string, doc map[string]interface{}) error {
	if err := c.client.IndexUser(ctx, userID, doc); err != nil {
		return err
	}
	return c.InvalidateUserCache(ctx)
}

// DeleteUser removes a user from the search index and drops cached results
func (c *CachedClient) DeleteUser(ctx context.Context, userID string) error {
	if err := c.client.DeleteUser(ctx, userID); err != nil {
		return err
	}
	return c.InvalidateUserCache(ctx)
}

// InvalidateUserCache invalidates cache for users (used after profile edits)
func (c *CachedClient) InvalidateUserCache(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	iter := c.redis.Scan(ctx, 0, "search:users:*", 0).Iterator()
	for iter.Next(ctx) {
		c.redis.Del(ctx, iter.Val())
	}
	return iter.Err()
}
