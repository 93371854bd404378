package lock

import (
	"context"
	"testing"
	"time"
)

func TestLocalAcquireIsExclusive(t *testing.T) {
	l := NewLocal()
	release, ok, err := l.Acquire(context.Background(), time.Minute)
	if err != nil || !ok {
		t.Fatalf("первый захват должен пройти: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := l.Acquire(context.Background(), time.Minute); ok {
		t.Fatalf("повторный захват не должен пройти")
	}
	release()
	release()
	if _, ok, _ := l.Acquire(context.Background(), time.Minute); !ok {
		t.Fatalf("после освобождения захват должен пройти")
	}
}
