package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-wp-mirror/internal/domain"
	"tg-wp-mirror/internal/infra/metrics"
)

// UpdatesSnapshot строит множество живых сообщений из свежего окна getUpdates.
// Сообщения старше окна неотличимы от удалённых.
type UpdatesSnapshot struct {
	api       UpdatesAPI
	channelID int64
}

var _ domain.LiveSnapshot = (*UpdatesSnapshot)(nil)

// NewUpdatesSnapshot создаёт снимок по окну апдейтов.
func NewUpdatesSnapshot(api UpdatesAPI, channelID int64) *UpdatesSnapshot {
	return &UpdatesSnapshot{api: api, channelID: channelID}
}

// LiveMessageIDs учитывает только посты канала; кандидаты не используются.
func (s *UpdatesSnapshot) LiveMessageIDs(_ context.Context, _ []int64) (map[int64]struct{}, error) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Limit = 100
	// Telegram запоминает allowed_updates между вызовами, поэтому список совпадает с Source.
	cfg.AllowedUpdates = allowedUpdates
	start := time.Now()
	updates, err := s.api.GetUpdates(cfg)
	metrics.ObserveNetworkRequest("telegram", "get_updates", "snapshot", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot updates: %v", domain.ErrTransport, err)
	}
	live := make(map[int64]struct{}, len(updates))
	for _, upd := range updates {
		post := upd.ChannelPost
		if post == nil || post.Chat == nil || post.Chat.ID != s.channelID {
			continue
		}
		live[int64(post.MessageID)] = struct{}{}
	}
	return live, nil
}
