package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"tg-wp-mirror/internal/domain"
	"tg-wp-mirror/internal/infra/metrics"
)

// RabbitAnnouncer публикует анонсы новых постов в очередь RabbitMQ.
type RabbitAnnouncer struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ domain.Announcer = (*RabbitAnnouncer)(nil)

// NewRabbitAnnouncer проверяет параметры; соединение открывается при первой публикации.
func NewRabbitAnnouncer(amqpURL, queue string) (*RabbitAnnouncer, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	return &RabbitAnnouncer{url: amqpURL, queue: queue}, nil
}

// Announce публикует анонс как постоянное JSON-сообщение.
func (q *RabbitAnnouncer) Announce(ctx context.Context, a domain.Announcement) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal announcement: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, err := q.channel()
	if err != nil {
		return err
	}
	start := time.Now()
	err = ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		q.reset()
		return fmt.Errorf("%w: publish announcement: %v", domain.ErrTransport, err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (q *RabbitAnnouncer) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reset()
	return nil
}

func (q *RabbitAnnouncer) channel() (*amqp.Channel, error) {
	if q.ch != nil && !q.ch.IsClosed() {
		return q.ch, nil
	}
	q.reset()
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return nil, fmt.Errorf("%w: dial rabbitmq: %v", domain.ErrTransport, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: open channel: %v", domain.ErrTransport, err)
	}
	if _, err := ch.QueueDeclare(q.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	q.conn, q.ch = conn, ch
	return ch, nil
}

func (q *RabbitAnnouncer) reset() {
	if q.ch != nil {
		_ = q.ch.Close()
		q.ch = nil
	}
	if q.conn != nil {
		_ = q.conn.Close()
		q.conn = nil
	}
}
