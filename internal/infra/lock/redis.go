package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tg-wp-mirror/internal/domain"
)

// releaseScript удаляет ключ, только если он всё ещё принадлежит нам.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock реализует domain.PassLock через SET NX.
type RedisLock struct {
	client *redis.Client
	key    string
}

var _ domain.PassLock = (*RedisLock)(nil)

// NewRedis создаёт блокировку по ключу.
func NewRedis(client *redis.Client, key string) *RedisLock {
	return &RedisLock{client: client, key: key}
}

// Acquire пытается занять ключ на ttl. ok=false означает, что проход уже идёт в другом процессе.
func (l *RedisLock) Acquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%w: acquire pass lock: %v", domain.ErrTransport, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}
	return release, true, nil
}
