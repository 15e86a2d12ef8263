package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var attemptCounterScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// AttemptLimiter counts failed attempts per subject inside a fixed window.
type AttemptLimiter interface {
	ConsumeAttempt(ctx context.Context, scope, subject string, window time.Duration) (count int, retryAfterSeconds int, err error)
	ResetAttempts(ctx context.Context, scope, subject string) error
}

// RedisAttemptLimiter keeps attempt counters in Redis so every instance of the
// service sees the same count.
type RedisAttemptLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisAttemptLimiter(client redis.UniversalClient, prefix string) *RedisAttemptLimiter {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "backoffice"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":") + ":attempts"

	return &RedisAttemptLimiter{
		client: client,
		prefix: trimmedPrefix,
	}
}

func (r *RedisAttemptLimiter) key(scope, subject string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, strings.TrimSpace(scope), strings.TrimSpace(subject))
}

// ConsumeAttempt records one attempt and returns the count in the current
// window together with the seconds until the window resets.
func (r *RedisAttemptLimiter) ConsumeAttempt(
	ctx context.Context,
	scope string,
	subject string,
	window time.Duration,
) (count int, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || window <= 0 {
		return 0, 0, nil
	}
	if strings.TrimSpace(scope) == "" || strings.TrimSpace(subject) == "" {
		return 0, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	rawResult, err := attemptCounterScript.Run(ctx, r.client, []string{r.key(scope, subject)}, windowMs).Result()
	if err != nil {
		return 0, 0, err
	}

	values, ok := rawResult.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis limiter response shape: %T", rawResult)
	}

	currentCount, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}

	ttlMs, ok := values[1].(int64)
	if !ok {
		return int(currentCount), 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter := int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}

	return int(currentCount), retryAfter, nil
}

// ResetAttempts clears the counter for subject.
func (r *RedisAttemptLimiter) ResetAttempts(ctx context.Context, scope, subject string) error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Del(ctx, r.key(scope, subject)).Err()
}
