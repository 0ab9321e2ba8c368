package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tripbill/tripbill/internal/cache"
	"github.com/tripbill/tripbill/pkg/errors"
	"github.com/tripbill/tripbill/pkg/logger"
	"github.com/tripbill/tripbill/pkg/response"
)

// KeyFunc picks the identity a request is counted against.
type KeyFunc func(c *gin.Context) string

// ByClientIP counts requests per client address and route.
func ByClientIP(c *gin.Context) string {
	return c.ClientIP() + "|" + c.FullPath()
}

// ByUser counts authenticated requests per user and route, falling back to
// the client address before authentication ran.
func ByUser(c *gin.Context) string {
	if userID := c.GetString(CtxUserIDKey); userID != "" {
		return "user:" + userID + "|" + c.FullPath()
	}
	return ByClientIP(c)
}

// RateLimit allows at most limit requests per key within window. A failing
// store lets the request through.
func RateLimit(store RateStore, name string, limit int, window time.Duration, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ByClientIP
	}
	log := logger.WithModule("ratelimit")

	return func(c *gin.Context) {
		if store == nil || limit <= 0 || window <= 0 {
			c.Next()
			return
		}

		count, ttl, err := store.Increment(c.Request.Context(), cache.Key("ratelimit", name, key(c)), window)
		if err != nil {
			log.Warn("rate limit store unavailable", zap.String("limiter", name), zap.Error(err))
			c.Next()
			return
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		reset := int(math.Ceil(ttl.Seconds()))
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(reset))

		if count > limit {
			c.Header("Retry-After", strconv.Itoa(reset))
			response.Error(c, errors.ErrRateLimit)
			return
		}
		c.Next()
	}
}
