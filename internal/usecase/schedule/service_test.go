package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-wp-mirror/internal/domain"
)

func TestCadenceInterval(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	next, err := Cadence{Interval: 5 * time.Minute}.Next(now)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !next.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("ожидали +5m, получили %v", next)
	}
}

func TestCadenceCron(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 7, 30, 0, time.UTC)
	next, err := Cadence{Cron: "*/15 * * * *", Interval: time.Minute}.Next(now)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	want := time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("ожидали %v, получили %v", want, next)
	}
}

func TestCadenceRejectsZeroInterval(t *testing.T) {
	if _, err := (Cadence{}).Next(time.Now()); err == nil {
		t.Fatal("ожидали ошибку для нулевого интервала")
	}
}

func TestLoopRunsImmediatelyAndRepeats(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Loop(ctx, Cadence{Interval: 10 * time.Millisecond}, zerolog.Nop(), func(context.Context) error {
			n := calls.Add(1)
			if n == 1 {
				return domain.ErrPassInProgress
			}
			if n == 2 {
				return errors.New("boom")
			}
			if n >= 3 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("цикл не завершился")
	}
	if calls.Load() < 3 {
		t.Fatalf("ожидали минимум 3 прохода, получили %d", calls.Load())
	}
}
