package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-wp-mirror/internal/domain"
)

const testChannel int64 = -1001234567890

func channelMessage(id int, chatID int64) *tgbotapi.Message {
	return &tgbotapi.Message{MessageID: id, Chat: &tgbotapi.Chat{ID: chatID}}
}

func TestClassifyShapes(t *testing.T) {
	cases := []struct {
		name   string
		update tgbotapi.Update
		kind   domain.EventKind
	}{
		{"channel_post", tgbotapi.Update{UpdateID: 1, ChannelPost: channelMessage(42, testChannel)}, domain.EventNew},
		{"message", tgbotapi.Update{UpdateID: 2, Message: channelMessage(42, testChannel)}, domain.EventNew},
		{"edited_channel_post", tgbotapi.Update{UpdateID: 3, EditedChannelPost: channelMessage(42, testChannel)}, domain.EventEdited},
		{"edited_message", tgbotapi.Update{UpdateID: 4, EditedMessage: channelMessage(42, testChannel)}, domain.EventEdited},
		{"foreign chat", tgbotapi.Update{UpdateID: 5, ChannelPost: channelMessage(42, -100999)}, domain.EventIgnored},
		{"unknown", tgbotapi.Update{UpdateID: 6}, domain.EventIgnored},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := Classify(tc.update, testChannel)
			if ev.Kind != tc.kind {
				t.Fatalf("ожидали %s, получили %s", tc.kind, ev.Kind)
			}
			if ev.UpdateID != int64(tc.update.UpdateID) {
				t.Fatalf("update_id потерян: %d", ev.UpdateID)
			}
			if tc.kind == domain.EventIgnored && ev.Reason == "" {
				t.Fatalf("у игнорируемого события должна быть причина")
			}
			if tc.kind != domain.EventIgnored && ev.MessageID != 42 {
				t.Fatalf("неверный message_id: %d", ev.MessageID)
			}
		})
	}
}

func TestClassifyPrefersCaption(t *testing.T) {
	msg := channelMessage(1, testChannel)
	msg.Text = "text"
	msg.Caption = "caption"
	if ev := Classify(tgbotapi.Update{ChannelPost: msg}, testChannel); ev.Text != "caption" {
		t.Fatalf("ожидали подпись, получили %q", ev.Text)
	}
	msg.Caption = ""
	if ev := Classify(tgbotapi.Update{ChannelPost: msg}, testChannel); ev.Text != "text" {
		t.Fatalf("ожидали текст, получили %q", ev.Text)
	}
	msg.Text = ""
	if ev := Classify(tgbotapi.Update{ChannelPost: msg}, testChannel); ev.Text != "" {
		t.Fatalf("ожидали пустую строку, получили %q", ev.Text)
	}
}

func TestClassifyPicksLargestPhoto(t *testing.T) {
	msg := channelMessage(1, testChannel)
	msg.Photo = []tgbotapi.PhotoSize{
		{FileID: "small", Width: 90, Height: 90, FileSize: 1000},
		{FileID: "large", Width: 1280, Height: 1280, FileSize: 90000},
		{FileID: "medium", Width: 320, Height: 320, FileSize: 20000},
	}
	ev := Classify(tgbotapi.Update{ChannelPost: msg}, testChannel)
	if ev.AttachmentRef != "large" {
		t.Fatalf("ожидали large, получили %q", ev.AttachmentRef)
	}

	msg.Photo = nil
	if ev := Classify(tgbotapi.Update{ChannelPost: msg}, testChannel); ev.AttachmentRef != "" {
		t.Fatalf("без фото ref должен быть пустым, получили %q", ev.AttachmentRef)
	}
}
