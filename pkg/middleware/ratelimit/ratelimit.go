package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// TokenBucket is an in-memory per-key limiter refilled at a fixed rate per minute.
type TokenBucket struct {
	capacity int
	rate     int
	now      func() time.Time

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates a limiter with capacity tokens refilled perMinute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if perMinute <= 0 {
		perMinute = 60
	}
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// Allow consumes one token for key.
func (l *TokenBucket) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true, nil
	}
	refill := int(now.Sub(b.last).Minutes() * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// RedisWindow is a fixed one-minute window counter shared across instances.
type RedisWindow struct {
	client *redis.Client
	limit  int
	prefix string
	now    func() time.Time
}

// NewRedisWindow constructs a Redis backed limiter allowing limit hits per minute.
func NewRedisWindow(client *redis.Client, limit int, prefix string) *RedisWindow {
	if limit <= 0 {
		limit = 60
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisWindow{client: client, limit: limit, prefix: prefix, now: time.Now}
}

// Allow increments the counter for the current minute window.
func (l *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	window := l.now().Unix() / 60
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, window)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis rate limit %s: %w", redisKey, err)
	}
	return incr.Val() <= int64(l.limit), nil
}

// Fallback consults primary and switches to secondary when primary errors.
type Fallback struct {
	primary   Limiter
	secondary Limiter
	logger    *zap.Logger
}

// NewFallback chains two limiters.
func NewFallback(primary, secondary Limiter, logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

// Allow implements Limiter.
func (f *Fallback) Allow(ctx context.Context, key string) (bool, error) {
	if f.primary != nil {
		ok, err := f.primary.Allow(ctx, key)
		if err == nil {
			return ok, nil
		}
		f.logger.Warn("primary rate limiter failed, using fallback", zap.Error(err))
	}
	return f.secondary.Allow(ctx, key)
}

// Middleware rejects requests over the limit with 429. Keys combine the route
// name with the client IP. Limiter errors fail open.
func Middleware(l Limiter, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		allowed, err := l.Allow(c.Request.Context(), name+":"+ip)
		if err == nil && !allowed {
			c.Header("Retry-After", "60")
			response.Abort(c, appErrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}
