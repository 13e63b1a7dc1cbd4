package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/FlowPagesHQ/FlowPages/internal/pkg/env"
)

// Decision is the outcome of a rate-limit check, carrying everything the
// HTTP layer needs for its response headers.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	Reset      time.Time
	Scope      string
	Degraded   bool
}

// Config holds the per-scope quotas for availability search.
type Config struct {
	IPLimit        int
	IPWindow       time.Duration
	ProjectLimit   int
	ProjectWindow  time.Duration
	FallbackLimit  int
	FallbackWindow time.Duration
}

// ConfigFromEnv reads the quotas from the environment with production
// defaults: 10/min per client IP and 100/h per project.
func ConfigFromEnv() Config {
	return Config{
		IPLimit:        env.GetEnvInt("RATE_LIMIT_SEARCH_IP", 10),
		IPWindow:       env.GetEnvDuration("RATE_LIMIT_SEARCH_IP_WINDOW", time.Minute),
		ProjectLimit:   env.GetEnvInt("RATE_LIMIT_SEARCH_PROJECT", 100),
		ProjectWindow:  env.GetEnvDuration("RATE_LIMIT_SEARCH_PROJECT_WINDOW", time.Hour),
		FallbackLimit:  env.GetEnvInt("RATE_LIMIT_FALLBACK", 5),
		FallbackWindow: env.GetEnvDuration("RATE_LIMIT_FALLBACK_WINDOW", time.Minute),
	}
}

// Limiter implements fixed-window counting on Redis. When Redis is
// unreachable it degrades to a stricter in-process window instead of
// letting traffic through unmetered.
type Limiter struct {
	rdb      *redis.Client
	cfg      Config
	fallback *MemoryWindow
}

// NewLimiter builds a limiter over the given Redis client. fallback may not
// be nil; it absorbs checks while Redis is down.
func NewLimiter(rdb *redis.Client, cfg Config, fallback *MemoryWindow) *Limiter {
	return &Limiter{rdb: rdb, cfg: cfg, fallback: fallback}
}

// Check counts one hit against the scope's fixed window and reports whether
// the caller is within quota.
func (l *Limiter) Check(ctx context.Context, scope, key string, limit int, window time.Duration) Decision {
	redisKey := fmt.Sprintf("ratelimit:%s:%s", scope, key)

	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		log.Warnf("[RateLimit] Redis unavailable, degrading to in-process window: %v", err)
		return l.fallback.Check(scope+":"+key, l.cfg.FallbackLimit, l.cfg.FallbackWindow)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, redisKey, window).Err(); err != nil {
			log.Warnf("[RateLimit] Failed to set window expiry on %s: %v", redisKey, err)
		}
	}

	ttl, err := l.rdb.TTL(ctx, redisKey).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}

	d := Decision{
		Limit:     limit,
		Remaining: limit - int(count),
		Reset:     time.Now().Add(ttl),
		Scope:     scope,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if count > int64(limit) {
		d.RetryAfter = ttl
		return d
	}
	d.Allowed = true
	return d
}

// CheckSearch applies the layered availability-search quota: a short burst
// window per client IP, then an hourly budget per project. The first
// exhausted scope wins.
func (l *Limiter) CheckSearch(ctx context.Context, clientIP string, projectID uint) Decision {
	if d := l.Check(ctx, "search:ip", clientIP, l.cfg.IPLimit, l.cfg.IPWindow); !d.Allowed {
		return d
	}
	return l.Check(ctx, "search:project", fmt.Sprintf("%d", projectID), l.cfg.ProjectLimit, l.cfg.ProjectWindow)
}
