package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-wp-mirror/internal/domain"
	"tg-wp-mirror/internal/infra/metrics"
)

// CursorName — ключ смещения getUpdates в таблице feed_cursor.
const CursorName = "telegram_updates"

var allowedUpdates = []string{"message", "channel_post", "edited_message", "edited_channel_post"}

// UpdatesAPI покрывает чтение ленты из *tgbotapi.BotAPI.
type UpdatesAPI interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// FileAPI покрывает скачивание вложений из *tgbotapi.BotAPI.
type FileAPI interface {
	GetFileDirectURL(fileID string) (string, error)
}

// Source читает апдейты Bot API и классифицирует их.
type Source struct {
	api       UpdatesAPI
	cursors   domain.CursorRepo
	channelID int64
	limit     int
	ack       bool
	log       zerolog.Logger
}

var _ domain.EventSource = (*Source)(nil)

// NewSource создаёт источник событий. При ack=true смещение хранится в cursors.
func NewSource(api UpdatesAPI, cursors domain.CursorRepo, channelID int64, limit int, ack bool, log zerolog.Logger) *Source {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return &Source{api: api, cursors: cursors, channelID: channelID, limit: limit, ack: ack, log: log}
}

// FetchEvents забирает одну пачку апдейтов в порядке ленты.
func (s *Source) FetchEvents(ctx context.Context) ([]domain.FeedEvent, error) {
	offset := 0
	if s.ack && s.cursors != nil {
		value, ok, err := s.cursors.GetCursor(ctx, CursorName)
		if err != nil {
			return nil, fmt.Errorf("load feed cursor: %w", err)
		}
		if ok {
			offset = int(value)
		}
	}
	cfg := tgbotapi.NewUpdate(offset)
	cfg.Limit = s.limit
	cfg.AllowedUpdates = allowedUpdates
	start := time.Now()
	updates, err := s.api.GetUpdates(cfg)
	metrics.ObserveNetworkRequest("telegram", "get_updates", "bot_api", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: get updates: %v", domain.ErrTransport, err)
	}
	events := make([]domain.FeedEvent, 0, len(updates))
	for _, upd := range updates {
		events = append(events, Classify(upd, s.channelID))
	}
	s.log.Debug().Int("updates", len(updates)).Int("offset", offset).Msg("telegram: получены апдейты")
	return events, nil
}

// Ack подтверждает обработанные апдейты; без TG_ACK_UPDATES окно перечитывается каждый проход.
func (s *Source) Ack(ctx context.Context, lastUpdateID int64) error {
	if !s.ack || s.cursors == nil {
		return nil
	}
	return s.cursors.SetCursor(ctx, CursorName, lastUpdateID+1)
}

// Files скачивает вложения через getFile.
type Files struct {
	api  FileAPI
	http *http.Client
}

var _ domain.FileFetcher = (*Files)(nil)

// NewFiles создаёт загрузчик вложений.
func NewFiles(api FileAPI, timeout time.Duration) *Files {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Files{api: api, http: &http.Client{Timeout: timeout}}
}

// FetchFile превращает ref во временный URL и скачивает байты.
func (f *Files) FetchFile(ctx context.Context, ref string) ([]byte, error) {
	start := time.Now()
	url, err := f.api.GetFileDirectURL(ref)
	metrics.ObserveNetworkRequest("telegram", "get_file", "bot_api", start, err)
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: resolve file %s: %v", domain.ErrDownload, ref, err)
		}
		return nil, fmt.Errorf("%w: %w: resolve file %s: %v", domain.ErrDownload, domain.ErrTransport, ref, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrDownload, err)
	}
	start = time.Now()
	resp, err := f.http.Do(req)
	metrics.ObserveNetworkRequest("telegram", "download_file", "file_api", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: download file %s: %v", domain.ErrDownload, domain.ErrTransport, ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %w: download file %s: status %d", domain.ErrDownload, domain.ErrTransport, ref, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: download file %s: status %d: %s", domain.ErrDownload, ref, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: read file %s: %v", domain.ErrDownload, domain.ErrTransport, ref, err)
	}
	return data, nil
}
