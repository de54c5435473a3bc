package redis

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const attemptKeyPrefix = "rl:admin_login:"

// LoginThrottle counts login attempts per username in a fixed window.
type LoginThrottle struct {
	Client *redis.Client
	Limit  int64
	Window time.Duration
}

func NewLoginThrottle(client *redis.Client, limit int, window time.Duration) *LoginThrottle {
	return &LoginThrottle{Client: client, Limit: int64(limit), Window: window}
}

func attemptKey(username string) string {
	return attemptKeyPrefix + strings.ToLower(username)
}

// Allow records an attempt and reports whether it is within the limit.
func (t *LoginThrottle) Allow(ctx context.Context, username string) (bool, error) {
	if t.Limit <= 0 {
		return true, nil
	}

	pipe := t.Client.TxPipeline()
	incr := pipe.Incr(ctx, attemptKey(username))
	pipe.Expire(ctx, attemptKey(username), t.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= t.Limit, nil
}

func (t *LoginThrottle) Reset(ctx context.Context, username string) error {
	return t.Client.Del(ctx, attemptKey(username)).Err()
}
