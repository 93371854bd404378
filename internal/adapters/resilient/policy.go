package resilient

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tg-wp-mirror/internal/domain"
)

// Policy задаёт повторы с экспоненциальной паузой и ограничение частоты вызовов.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// RPS ограничивает частоту вызовов; 0 отключает ограничение.
	RPS float64
}

type runner struct {
	policy  Policy
	limiter *rate.Limiter
	log     zerolog.Logger
}

func newRunner(p Policy, log zerolog.Logger) runner {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = 500 * time.Millisecond
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	r := runner{policy: p, log: log}
	if p.RPS > 0 {
		burst := int(p.RPS)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(p.RPS), burst)
	}
	return r
}

// wait ждёт разрешения лимитера, если он настроен.
func (r runner) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

// run повторяет op только при domain.ErrTransport, прочие ошибки возвращаются сразу.
func (r runner) run(ctx context.Context, name string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts-1)), ctx)

	attempt := func() error {
		if err := r.wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		err := op()
		if err != nil && !errors.Is(err, domain.ErrTransport) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.log.Warn().Err(err).Str("op", name).Dur("retry_in", wait).Msg("resilient: повтор после сбоя транспорта")
	}
	return backoff.RetryNotify(attempt, policy, notify)
}
