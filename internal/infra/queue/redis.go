package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-wp-mirror/internal/domain"
	"tg-wp-mirror/internal/infra/metrics"
)

// RedisAnnouncer складывает анонсы в Redis list; внешний постер читает их через BRPOP.
type RedisAnnouncer struct {
	client *redis.Client
	key    string
}

var _ domain.Announcer = (*RedisAnnouncer)(nil)

// NewRedisAnnouncer создаёт announcer по указанному ключу.
func NewRedisAnnouncer(client *redis.Client, key string) *RedisAnnouncer {
	return &RedisAnnouncer{client: client, key: key}
}

// Announce публикует анонс.
func (q *RedisAnnouncer) Announce(ctx context.Context, a domain.Announcement) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal announcement: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("%w: push announcement: %v", domain.ErrTransport, err)
	}
	return nil
}
