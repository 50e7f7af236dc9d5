package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter counts visual-login attempts per student in redis with a
// sliding TTL window. The closed pictogram set makes unthrottled guessing
// trivial, so every attempt is counted before the credential is checked.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func attemptKey(studentID string) string {
	return "visual_login_attempts:" + studentID
}

func (l *RedisLimiter) Allow(ctx context.Context, studentID string) (bool, error) {
	key := attemptKey(studentID)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(l.limit), nil
}

func (l *RedisLimiter) Reset(ctx context.Context, studentID string) error {
	return l.client.Del(ctx, attemptKey(studentID)).Err()
}
