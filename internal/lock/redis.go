package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrLocked = errors.New("lock already held")

// releaseScript deletes the key only while it still carries our token, so an
// expired lock taken over by another request is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client is the subset of *redis.Client the lock needs.
type Client interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLock is a short-lived mutual exclusion keyed by an arbitrary string.
type RedisLock struct {
	rdb    Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

func NewRedisLock(rdb Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisLock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLock{rdb: rdb, ttl: ttl, prefix: prefix, logger: logger.With(zap.String("component", "lock"))}
}

func (l *RedisLock) Key(name string) string {
	return fmt.Sprintf("%s:%s", l.prefix, name)
}

// Acquire takes the lock or returns ErrLocked. The returned release func is
// safe to call once the caller is done; it never blocks longer than 2s. A
// failed release is logged and the key stays until its TTL runs out.
func (l *RedisLock) Acquire(ctx context.Context, name string) (func(), error) {
	key := l.Key(name)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.rdb, []string{key}, token).Err(); err != nil {
			l.logger.Warn("lock release failed",
				zap.String("key", key),
				zap.Duration("ttl", l.ttl),
				zap.Error(err))
		}
	}
	return release, nil
}
