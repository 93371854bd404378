package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-wp-mirror/internal/domain"
)

// Classify приводит апдейт Bot API к единому событию ленты.
// Правка распознаётся по виду апдейта (edited_*), тексты не сравниваются.
func Classify(update tgbotapi.Update, channelID int64) domain.FeedEvent {
	ev := domain.FeedEvent{UpdateID: int64(update.UpdateID)}
	var (
		msg  *tgbotapi.Message
		kind domain.EventKind
	)
	switch {
	case update.Message != nil:
		msg, kind = update.Message, domain.EventNew
	case update.ChannelPost != nil:
		msg, kind = update.ChannelPost, domain.EventNew
	case update.EditedMessage != nil:
		msg, kind = update.EditedMessage, domain.EventEdited
	case update.EditedChannelPost != nil:
		msg, kind = update.EditedChannelPost, domain.EventEdited
	default:
		ev.Reason = "unknown update shape"
		return ev
	}
	ev.MessageID = int64(msg.MessageID)
	if msg.Chat != nil {
		ev.ChannelID = msg.Chat.ID
	}
	if msg.Chat == nil || msg.Chat.ID != channelID {
		ev.Reason = "foreign chat"
		return ev
	}
	ev.Kind = kind
	ev.Text = messageText(msg)
	ev.AttachmentRef = largestPhoto(msg.Photo)
	return ev
}

func messageText(msg *tgbotapi.Message) string {
	if msg.Caption != "" {
		return msg.Caption
	}
	return msg.Text
}

// largestPhoto выбирает вариант с наибольшим числом пикселей, при равенстве больший по размеру файла.
func largestPhoto(sizes []tgbotapi.PhotoSize) string {
	var (
		best      string
		bestArea  int
		bestBytes int
	)
	for _, p := range sizes {
		if p.FileID == "" {
			continue
		}
		area := p.Width * p.Height
		if best == "" || area > bestArea || (area == bestArea && p.FileSize > bestBytes) {
			best, bestArea, bestBytes = p.FileID, area, p.FileSize
		}
	}
	return best
}
