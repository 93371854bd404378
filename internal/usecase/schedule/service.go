package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog"

	"tg-wp-mirror/internal/domain"
)

// Cadence задаёт расписание проходов: cron-выражение или фиксированный интервал.
type Cadence struct {
	Cron     string
	Interval time.Duration
}

// Next возвращает момент следующего прохода после now.
func (c Cadence) Next(now time.Time) (time.Time, error) {
	if c.Cron != "" {
		next, err := gronx.NextTickAfter(c.Cron, now, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("cron %q: %w", c.Cron, err)
		}
		return next, nil
	}
	if c.Interval <= 0 {
		return time.Time{}, errors.New("interval must be positive")
	}
	return now.Add(c.Interval), nil
}

// Loop сразу выполняет run, затем повторяет его по расписанию до отмены ctx.
// Ошибки прохода только логируются; пропуск из-за незавершённого прохода логируется как info.
func Loop(ctx context.Context, cadence Cadence, log zerolog.Logger, run func(context.Context) error) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if err := run(ctx); err != nil {
			switch {
			case errors.Is(err, domain.ErrPassInProgress):
				log.Info().Msg("scheduler: предыдущий проход ещё идёт, пропускаем")
			case ctx.Err() != nil:
				return nil
			default:
				log.Error().Err(err).Msg("scheduler: проход завершился ошибкой")
			}
		}

		now := time.Now()
		next, err := cadence.Next(now)
		if err != nil {
			return err
		}
		log.Debug().Time("next", next).Msg("scheduler: следующий проход")
		timer.Reset(next.Sub(now))
	}
}
