package resilient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-wp-mirror/internal/domain"
)

type flakyDestination struct {
	failures int
	err      error
	calls    int
}

func (f *flakyDestination) fail() error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyDestination) CreatePost(context.Context, domain.Target, domain.PostPayload) (domain.RemotePost, error) {
	if err := f.fail(); err != nil {
		return domain.RemotePost{}, err
	}
	return domain.RemotePost{ID: 7}, nil
}

func (f *flakyDestination) UpdatePost(context.Context, domain.Target, int64, domain.PostPayload) error {
	return f.fail()
}

func (f *flakyDestination) DeletePost(context.Context, domain.Target, int64) error {
	return f.fail()
}

func (f *flakyDestination) UploadMedia(context.Context, domain.Target, domain.MediaFile) (int64, error) {
	if err := f.fail(); err != nil {
		return 0, err
	}
	return 5, nil
}

var fastPolicy = Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func TestDestinationRetriesTransport(t *testing.T) {
	next := &flakyDestination{failures: 2, err: fmt.Errorf("%w: 502", domain.ErrTransport)}
	d := NewDestination(next, fastPolicy, zerolog.Nop())
	post, err := d.CreatePost(context.Background(), domain.Target{}, domain.PostPayload{})
	if err != nil {
		t.Fatalf("ожидали успех после повторов: %v", err)
	}
	if post.ID != 7 || next.calls != 3 {
		t.Fatalf("ожидали 3 вызова и id 7, получили %d и %d", next.calls, post.ID)
	}
}

func TestDestinationGivesUpAfterMaxAttempts(t *testing.T) {
	next := &flakyDestination{failures: 10, err: fmt.Errorf("%w: timeout", domain.ErrTransport)}
	d := NewDestination(next, fastPolicy, zerolog.Nop())
	_, err := d.UploadMedia(context.Background(), domain.Target{}, domain.MediaFile{})
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("ожидали ErrTransport, получили %v", err)
	}
	if next.calls != 3 {
		t.Fatalf("ожидали 3 попытки, получили %d", next.calls)
	}
}

func TestDestinationDoesNotRetryPermanent(t *testing.T) {
	for _, sentinel := range []error{domain.ErrNotFound, domain.ErrPublish} {
		next := &flakyDestination{failures: 10, err: fmt.Errorf("%w: status", sentinel)}
		d := NewDestination(next, fastPolicy, zerolog.Nop())
		err := d.UpdatePost(context.Background(), domain.Target{}, 7, domain.PostPayload{})
		if !errors.Is(err, sentinel) {
			t.Fatalf("ожидали %v, получили %v", sentinel, err)
		}
		if next.calls != 1 {
			t.Fatalf("%v не должен повторяться, вызовов %d", sentinel, next.calls)
		}
	}
}

type flakyFiles struct {
	calls int
}

func (f *flakyFiles) FetchFile(context.Context, string) ([]byte, error) {
	f.calls++
	if f.calls == 1 {
		return nil, fmt.Errorf("%w: %w: reset", domain.ErrDownload, domain.ErrTransport)
	}
	return []byte("jpeg"), nil
}

func TestFilesRetry(t *testing.T) {
	next := &flakyFiles{}
	data, err := NewFiles(next, fastPolicy, zerolog.Nop()).FetchFile(context.Background(), "file123")
	if err != nil || string(data) != "jpeg" || next.calls != 2 {
		t.Fatalf("ожидали успех со второй попытки: %q %v calls=%d", data, err, next.calls)
	}
}

func TestDestinationDeleteIsNotRetried(t *testing.T) {
	next := &flakyDestination{failures: 10, err: fmt.Errorf("%w: status 503", domain.ErrTransport)}
	d := NewDestination(next, Policy{MaxAttempts: 4, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, RPS: 100}, zerolog.Nop())
	err := d.DeletePost(context.Background(), domain.Target{}, 7)
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("ожидали ErrTransport, получили %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("удаление должно выполняться один раз, получили %d вызовов", next.calls)
	}
}
