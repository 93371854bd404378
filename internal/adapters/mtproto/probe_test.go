package mtproto

import (
	"testing"

	"github.com/gotd/td/tg"
)

func TestMTProtoChannelID(t *testing.T) {
	if got := mtprotoChannelID(-1001234567890); got != 1234567890 {
		t.Fatalf("ожидали 1234567890, получили %d", got)
	}
	if got := mtprotoChannelID(555); got != 555 {
		t.Fatalf("положительный id не меняется, получили %d", got)
	}
}

func TestChunk(t *testing.T) {
	ids := make([]int64, 250)
	for i := range ids {
		ids[i] = int64(i)
	}
	parts := chunk(ids, 100)
	if len(parts) != 3 || len(parts[0]) != 100 || len(parts[2]) != 50 {
		t.Fatalf("неверное разбиение: %d частей", len(parts))
	}
	if chunk(nil, 100) != nil {
		t.Fatalf("пустой вход даёт пустой результат")
	}
}

func TestCollectLiveSkipsEmpty(t *testing.T) {
	res := &tg.MessagesChannelMessages{Messages: []tg.MessageClass{
		&tg.Message{ID: 10},
		&tg.MessageEmpty{ID: 11},
		&tg.Message{ID: 12},
	}}
	live := collectLive(res)
	if len(live) != 2 {
		t.Fatalf("ожидали 2 живых, получили %v", live)
	}
	if _, ok := live[11]; ok {
		t.Fatalf("messageEmpty не должен считаться живым")
	}
}
