package lock

import (
	"context"
	"sync"
	"time"

	"tg-wp-mirror/internal/domain"
)

// Local блокирует проходы в пределах процесса, когда Redis не настроен.
type Local struct {
	mu   sync.Mutex
	held bool
}

var _ domain.PassLock = (*Local)(nil)

// NewLocal создаёт блокировку.
func NewLocal() *Local {
	return &Local{}
}

// Acquire занимает блокировку без ожидания; ttl не используется.
func (l *Local) Acquire(context.Context, time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, false, nil
	}
	l.held = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.held = false
			l.mu.Unlock()
		})
	}, true, nil
}
