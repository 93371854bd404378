package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-wp-mirror/internal/adapters/repo"
	"tg-wp-mirror/internal/domain"
)

type fakeUpdates struct {
	updates []tgbotapi.Update
	configs []tgbotapi.UpdateConfig
	err     error
}

func (f *fakeUpdates) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.configs = append(f.configs, cfg)
	return f.updates, f.err
}

type fakeFileAPI struct {
	url string
	err error
}

func (f fakeFileAPI) GetFileDirectURL(string) (string, error) {
	return f.url, f.err
}

func TestSourceAckMovesOffset(t *testing.T) {
	api := &fakeUpdates{updates: []tgbotapi.Update{
		{UpdateID: 10, ChannelPost: channelMessage(1, testChannel)},
		{UpdateID: 11, ChannelPost: channelMessage(2, -1)},
	}}
	store := repo.NewMemory()
	src := NewSource(api, store, testChannel, 50, true, zerolog.Nop())
	ctx := context.Background()

	events, err := src.FetchEvents(ctx)
	if err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if len(events) != 2 || events[0].Kind != domain.EventNew || events[1].Kind != domain.EventIgnored {
		t.Fatalf("неожиданные события: %+v", events)
	}
	if api.configs[0].Offset != 0 || api.configs[0].Limit != 50 {
		t.Fatalf("неверный первый запрос: %+v", api.configs[0])
	}
	if err := src.Ack(ctx, 11); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if _, err := src.FetchEvents(ctx); err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if api.configs[1].Offset != 12 {
		t.Fatalf("ожидали offset 12, получили %d", api.configs[1].Offset)
	}
}

func TestSourceWithoutAckRereadsWindow(t *testing.T) {
	api := &fakeUpdates{}
	store := repo.NewMemory()
	src := NewSource(api, store, testChannel, 0, false, zerolog.Nop())
	ctx := context.Background()
	if err := src.Ack(ctx, 99); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if _, ok, _ := store.GetCursor(ctx, CursorName); ok {
		t.Fatalf("без подтверждения курсор не сохраняется")
	}
	if _, err := src.FetchEvents(ctx); err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if api.configs[0].Offset != 0 {
		t.Fatalf("ожидали offset 0, получили %d", api.configs[0].Offset)
	}
}

func TestSourceTransportError(t *testing.T) {
	src := NewSource(&fakeUpdates{err: errors.New("boom")}, nil, testChannel, 0, false, zerolog.Nop())
	if _, err := src.FetchEvents(context.Background()); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("ожидали ErrTransport, получили %v", err)
	}
}

func TestFilesFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("jpeg"))
		case "/gone":
			http.Error(w, "not found", http.StatusNotFound)
		default:
			http.Error(w, "down", http.StatusBadGateway)
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	data, err := NewFiles(fakeFileAPI{url: srv.URL + "/ok"}, 0).FetchFile(ctx, "file123")
	if err != nil || string(data) != "jpeg" {
		t.Fatalf("ожидали jpeg, получили %q, %v", data, err)
	}

	_, err = NewFiles(fakeFileAPI{url: srv.URL + "/gone"}, 0).FetchFile(ctx, "file123")
	if !errors.Is(err, domain.ErrDownload) || errors.Is(err, domain.ErrTransport) {
		t.Fatalf("404 должен быть ErrDownload без ErrTransport: %v", err)
	}

	_, err = NewFiles(fakeFileAPI{url: srv.URL + "/down"}, 0).FetchFile(ctx, "file123")
	if !errors.Is(err, domain.ErrDownload) || !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("502 должен быть ErrDownload и ErrTransport: %v", err)
	}

	_, err = NewFiles(fakeFileAPI{err: &tgbotapi.Error{Code: 400, Message: "file is too big"}}, 0).FetchFile(ctx, "file123")
	if !errors.Is(err, domain.ErrDownload) || errors.Is(err, domain.ErrTransport) {
		t.Fatalf("ошибка API должна быть ErrDownload без ErrTransport: %v", err)
	}
}

func TestUpdatesSnapshotChannelPostsOnly(t *testing.T) {
	api := &fakeUpdates{updates: []tgbotapi.Update{
		{UpdateID: 1, ChannelPost: channelMessage(10, testChannel)},
		{UpdateID: 2, EditedChannelPost: channelMessage(11, testChannel)},
		{UpdateID: 3, ChannelPost: channelMessage(12, testChannel)},
		{UpdateID: 4, ChannelPost: channelMessage(13, -5)},
	}}
	live, err := NewUpdatesSnapshot(api, testChannel).LiveMessageIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("LiveMessageIDs: %v", err)
	}
	if len(live) != 2 {
		t.Fatalf("ожидали 2 живых сообщения, получили %v", live)
	}
	for _, id := range []int64{10, 12} {
		if _, ok := live[id]; !ok {
			t.Fatalf("сообщение %d должно быть живым", id)
		}
	}
}

func TestUpdatesSnapshotKeepsSubscription(t *testing.T) {
	ctx := context.Background()
	api := &fakeUpdates{}
	if _, err := NewSource(api, nil, testChannel, 100, false, zerolog.Nop()).FetchEvents(ctx); err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if _, err := NewUpdatesSnapshot(api, testChannel).LiveMessageIDs(ctx, nil); err != nil {
		t.Fatalf("LiveMessageIDs: %v", err)
	}
	if len(api.configs) != 2 {
		t.Fatalf("ожидали 2 вызова getUpdates, получили %d", len(api.configs))
	}
	want := []string{"message", "channel_post", "edited_message", "edited_channel_post"}
	for i, cfg := range api.configs {
		if len(cfg.AllowedUpdates) != len(want) {
			t.Fatalf("вызов %d: allowed_updates=%v, ожидали %v", i, cfg.AllowedUpdates, want)
		}
		for j := range want {
			if cfg.AllowedUpdates[j] != want[j] {
				t.Fatalf("вызов %d: allowed_updates=%v, ожидали %v", i, cfg.AllowedUpdates, want)
			}
		}
	}
}
