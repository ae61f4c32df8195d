package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRedisKey is the sorted set holding call start times.
const DefaultRedisKey = "discover:rate_limit:calls"

// acquireScript trims calls older than the window, then either records the
// new call (returns 0) or returns the milliseconds until the oldest call
// leaves the window.
var acquireScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local period = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - period)
if redis.call('ZCARD', key) < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, period)
  return 0
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local wait = tonumber(oldest[2]) + period - now
if wait < 1 then
  wait = 1
end
return wait
`)

// RedisWindow is a sliding window limiter whose call log lives in Redis, so
// every process sharing the same API key draws from one budget.
type RedisWindow struct {
	redis  *redis.Client
	key    string
	config Config
	clock  clock.Clock
	logger zerolog.Logger
}

// NewRedisWindow creates a Redis backed limiter. An empty key uses DefaultRedisKey.
func NewRedisWindow(redisClient *redis.Client, key string, cfg Config, clk clock.Clock, logger zerolog.Logger) (*RedisWindow, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if key == "" {
		key = DefaultRedisKey
	}
	if clk == nil {
		clk = clock.New()
	}
	return &RedisWindow{
		redis:  redisClient,
		key:    key,
		config: cfg,
		clock:  clk,
		logger: logger,
	}, nil
}

// Acquire implements Limiter.
func (r *RedisWindow) Acquire(ctx context.Context) error {
	started := r.clock.Now()
	member := uuid.NewString()
	waited := false

	for {
		now := r.clock.Now().UnixMilli()
		wait, err := acquireScript.Run(ctx, r.redis, []string{r.key},
			now, r.config.Period.Milliseconds(), r.config.Calls, member).Int64()
		if err != nil {
			return fmt.Errorf("acquire redis rate budget: %w", err)
		}
		if wait == 0 {
			rateLimitAcquiredTotal.WithLabelValues(backendRedis).Inc()
			if waited {
				rateLimitWaitSeconds.WithLabelValues(backendRedis).Observe(r.clock.Now().Sub(started).Seconds())
			}
			return nil
		}

		if !waited {
			rateLimitWaitsTotal.WithLabelValues(backendRedis).Inc()
			waited = true
		}
		d := time.Duration(wait) * time.Millisecond
		r.logger.Debug().
			Str("key", r.key).
			Dur("wait", d).
			Msg("Shared rate budget exhausted, waiting")

		if err := Sleep(ctx, r.clock, d); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
}

// Budget implements Inspector.
func (r *RedisWindow) Budget(ctx context.Context) (Budget, error) {
	now := r.clock.Now().UnixMilli()
	lowest := strconv.FormatInt(now-r.config.Period.Milliseconds(), 10)

	entries, err := r.redis.ZRangeByScoreWithScores(ctx, r.key, &redis.ZRangeBy{
		Min: "(" + lowest,
		Max: "+inf",
	}).Result()
	if err != nil {
		return Budget{}, fmt.Errorf("read redis rate budget: %w", err)
	}

	b := Budget{
		CallsInWindow: len(entries),
		Limit:         r.config.Calls,
		Period:        r.config.Period,
	}
	if len(entries) > 0 {
		b.WindowStart = time.UnixMilli(int64(entries[0].Score))
	}
	rateLimitCallsInWindow.WithLabelValues(backendRedis).Set(float64(len(entries)))
	return b, nil
}
