package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const lockKeyPrefix = "payment_lock:"

// TokenLock is an in-flight guard for concurrent reconciliations of the same token.
// It never decides the outcome; the conditional database update does.
type TokenLock struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewTokenLock(client *redis.Client, ttl time.Duration) *TokenLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &TokenLock{Client: client, TTL: ttl}
}

// Lock claims ref for owner. False means someone else holds it.
func (l *TokenLock) Lock(ctx context.Context, ref, owner string) (bool, error) {
	return l.Client.SetNX(ctx, lockKeyPrefix+ref, owner, l.TTL).Result()
}

// Unlock releases ref only if owner still holds it.
func (l *TokenLock) Unlock(ctx context.Context, ref, owner string) error {
	key := lockKeyPrefix + ref
	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}
	if val == owner {
		return l.Client.Del(ctx, key).Err()
	}
	return nil
}

func (l *TokenLock) IsLocked(ctx context.Context, ref string) (bool, error) {
	n, err := l.Client.Exists(ctx, lockKeyPrefix+ref).Result()
	return n > 0, err
}
