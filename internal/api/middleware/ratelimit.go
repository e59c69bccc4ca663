package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// limiterPrefix namespaces limiter keys in a shared store.
const limiterPrefix = "aurospan_limiter"

// NewLimiterStore returns a Redis-backed limiter store when client is set and
// an in-process store otherwise.
func NewLimiterStore(client *redis.Client) (limiter.Store, error) {
	if client == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          limiterPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		}), nil
	}

	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: limiterPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis limiter store: %w", err)
	}
	return store, nil
}

// NewRedisClient parses redisURL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// NewRateLimiter creates a Gin middleware allowing requests per period for
// each client IP. A store failure lets the request through.
func NewRateLimiter(store limiter.Store, requests int64, period time.Duration, logger zerolog.Logger) (gin.HandlerFunc, error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid rate limit period %v", period)
	}
	if requests <= 0 {
		return nil, fmt.Errorf("invalid rate limit %d", requests)
	}

	log := logger.With().Str("component", "rate_limiter").Logger()

	instance := limiter.New(store, limiter.Rate{
		Period: period,
		Limit:  requests,
	})

	return mgin.NewMiddleware(instance,
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			log.Warn().Err(err).Msg("rate limiter store unavailable")
			c.Next()
		}),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			log.Warn().
				Str("client_ip", c.ClientIP()).
				Str("path", c.Request.URL.Path).
				Msg("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, slow down"})
		}),
	), nil
}
