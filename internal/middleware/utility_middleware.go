package middleware

import (
	"fmt"
	"math/rand"
	"time"

	"ridepool/internal/utils"
	"ridepool/pkg/cache"

	"github.com/gin-gonic/gin"
)

// CORSMiddleware configures CORS headers
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware adds a request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("%d-%d", time.Now().UnixNano(), rand.Intn(10000))
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// RateLimitMiddleware caps requests per client IP within a fixed window.
// The counter lives in redis so every instance shares the same budget.
// When redis is unavailable the request is allowed through.
func RateLimitMiddleware(redis *cache.RedisCache, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redis == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s", c.ClientIP())

		count, err := redis.Increment(c.Request.Context(), key)
		if err != nil {
			c.Next()
			return
		}

		if count == 1 {
			redis.SetExpire(c.Request.Context(), key, window)
		}

		if count > int64(limit) {
			utils.ErrorResponse(c, 429, utils.CodeRateLimited, "too many requests")
			c.Abort()
			return
		}

		c.Next()
	}
}
