package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisRateLimitConfig configures a fixed-window limiter shared through Redis.
type RedisRateLimitConfig struct {
	Client *redis.Client
	// Limit is the number of requests a client may make per Window.
	Limit  int64
	Window time.Duration
	Prefix string
}

func windowKey(prefix, client string, now time.Time, window time.Duration) string {
	bucket := now.UnixNano() / int64(window)
	return fmt.Sprintf("%s%s:%d", prefix, client, bucket)
}

// RedisRateLimit limits each client IP to cfg.Limit requests per window
// across every server instance. When Redis is unreachable the request is
// let through and a warning is logged.
func RedisRateLimit(cfg RedisRateLimitConfig, logger zerolog.Logger) echo.MiddlewareFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "rl:"
	}
	limit := strconv.FormatInt(cfg.Limit, 10)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			now := time.Now()
			key := windowKey(cfg.Prefix, c.RealIP(), now, cfg.Window)

			pipe := cfg.Client.TxPipeline()
			incr := pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, cfg.Window)
			if _, err := pipe.Exec(ctx); err != nil {
				logger.Warn().Err(err).Str("key", key).Msg("rate limit store unavailable")
				return next(c)
			}

			count := incr.Val()
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			remaining := cfg.Limit - count
			if remaining < 0 {
				remaining = 0
			}
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > cfg.Limit {
				resetIn := cfg.Window - time.Duration(now.UnixNano()%int64(cfg.Window))
				h.Set("Retry-After", strconv.Itoa(int(resetIn.Seconds())+1))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
