package middleware

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/socialfeed/backend/internal/cache"
	"github.com/socialfeed/backend/internal/errors"
	"github.com/socialfeed/backend/internal/logger"
	"github.com/socialfeed/backend/internal/util"
	"go.uber.org/zap"
)

// RedisRateLimitMiddleware creates a distributed rate limiter using Redis.
// The counter is per client IP with a fixed window. Works across multiple
// instances because the state lives in Redis, not the process.
func RedisRateLimitMiddleware(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		redisClient := cache.GetRedisClient()
		if redisClient == nil {
			// Redis not configured: let the request through but say so
			logger.Log.Warn("Redis rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		clientIP := getClientIP(c.Request.RemoteAddr)
		key := fmt.Sprintf("rate_limit:%s", clientIP)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		val, err := redisClient.GetInt(ctx, key)
		if err != nil && err.Error() != "redis: nil" {
			// Fail closed: a broken limiter must not open the API up
			logger.Log.Error("Rate limit check failed - rejecting request",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)
			util.RespondWithAPIError(c, errors.ServiceUnavailable("rate limiter"))
			c.Abort()
			return
		}

		if val >= int64(maxRequests) {
			logger.Log.Warn("Rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.Int("max_requests", maxRequests),
				zap.Int64("current_requests", val),
			)
			RecordRateLimitExceeded(c.Request.URL.Path, c.Request.Method)
			util.RespondWithAPIError(c, errors.RateLimited(""))
			c.Abort()
			return
		}

		newVal, err := redisClient.IncrBy(ctx, key, 1)
		if err != nil {
			logger.Log.Error("Rate limit increment failed - rejecting request",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)
			util.RespondWithAPIError(c, errors.ServiceUnavailable("rate limiter"))
			c.Abort()
			return
		}

		// Window starts at the first request
		if newVal == 1 {
			if err := redisClient.Expire(ctx, key, window); err != nil {
				logger.Log.Warn("Failed to set rate limit expiration",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
			}
		}

		c.Next()
	}
}

// getClientIP extracts the client IP from RemoteAddr
func getClientIP(remoteAddr string) string {
	if ip, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return ip
	}
	return remoteAddr
}
