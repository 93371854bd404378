package mtproto

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"tg-wp-mirror/internal/domain"
	"tg-wp-mirror/internal/infra/metrics"
)

const probeChunk = 100

// Probe проверяет существование сообщений канала через MTProto под токеном бота.
// В отличие от окна getUpdates, видит и старые сообщения.
type Probe struct {
	appID     int
	appHash   string
	botToken  string
	username  string
	channelID int64
	session   string
	log       zerolog.Logger
}

var _ domain.LiveSnapshot = (*Probe)(nil)

// NewProbe создаёт снимок по MTProto. channelID задаётся в форме Bot API (-100…).
func NewProbe(appID int, appHash, botToken, username string, channelID int64, sessionFile string, log zerolog.Logger) *Probe {
	return &Probe{
		appID:     appID,
		appHash:   appHash,
		botToken:  botToken,
		username:  username,
		channelID: channelID,
		session:   sessionFile,
		log:       log,
	}
}

// LiveMessageIDs возвращает те кандидаты, что ещё существуют в канале.
func (p *Probe) LiveMessageIDs(ctx context.Context, candidates []int64) (map[int64]struct{}, error) {
	live := make(map[int64]struct{}, len(candidates))
	if len(candidates) == 0 {
		return live, nil
	}
	client := telegram.NewClient(p.appID, p.appHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: p.session},
		NoUpdates:      true,
	})
	start := time.Now()
	err := client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized {
			if _, err := client.Auth().Bot(ctx, p.botToken); err != nil {
				return fmt.Errorf("bot auth: %w", err)
			}
		}
		api := client.API()
		channel, err := p.resolve(ctx, api)
		if err != nil {
			return err
		}
		for _, ids := range chunk(candidates, probeChunk) {
			res, err := api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
				Channel: channel,
				ID:      inputIDs(ids),
			})
			if err != nil {
				return fmt.Errorf("channels.getMessages: %w", err)
			}
			for id := range collectLive(res) {
				live[id] = struct{}{}
			}
		}
		return nil
	})
	metrics.ObserveNetworkRequest("mtproto", "probe", p.username, start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: mtproto probe: %v", domain.ErrTransport, err)
	}
	p.log.Debug().Int("candidates", len(candidates)).Int("live", len(live)).Msg("mtproto: снимок канала получен")
	return live, nil
}

func (p *Probe) resolve(ctx context.Context, api *tg.Client) (*tg.InputChannel, error) {
	resolved, err := api.ContactsResolveUsername(ctx, p.username)
	if err != nil {
		return nil, fmt.Errorf("resolve @%s: %w", p.username, err)
	}
	want := mtprotoChannelID(p.channelID)
	for _, chat := range resolved.Chats {
		ch, ok := chat.(*tg.Channel)
		if !ok {
			continue
		}
		if ch.ID != want {
			return nil, fmt.Errorf("@%s resolves to channel %d, configured %d", p.username, ch.ID, want)
		}
		return &tg.InputChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, nil
	}
	return nil, errors.New("username does not resolve to a channel")
}

// mtprotoChannelID переводит -100XXXXXXXXXX из Bot API в идентификатор MTProto.
func mtprotoChannelID(botAPIID int64) int64 {
	if botAPIID < -1000000000000 {
		return -botAPIID - 1000000000000
	}
	if botAPIID < 0 {
		return -botAPIID
	}
	return botAPIID
}

func chunk(ids []int64, size int) [][]int64 {
	var out [][]int64
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func inputIDs(ids []int64) []tg.InputMessageClass {
	out := make([]tg.InputMessageClass, 0, len(ids))
	for _, id := range ids {
		out = append(out, &tg.InputMessageID{ID: int(id)})
	}
	return out
}

// collectLive оставляет существующие сообщения; messageEmpty означает удаление.
func collectLive(res tg.MessagesMessagesClass) map[int64]struct{} {
	var messages []tg.MessageClass
	switch r := res.(type) {
	case *tg.MessagesChannelMessages:
		messages = r.Messages
	case *tg.MessagesMessages:
		messages = r.Messages
	case *tg.MessagesMessagesSlice:
		messages = r.Messages
	}
	live := make(map[int64]struct{}, len(messages))
	for _, m := range messages {
		switch msg := m.(type) {
		case *tg.Message:
			live[int64(msg.ID)] = struct{}{}
		case *tg.MessageService:
			live[int64(msg.ID)] = struct{}{}
		}
	}
	return live
}
