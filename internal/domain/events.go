package domain

// EventKind — вариант нормализованного события ленты.
type EventKind int

const (
	// EventIgnored событие не относится к каналу или не распознано.
	EventIgnored EventKind = iota
	// EventNew новое сообщение канала.
	EventNew
	// EventEdited отредактированное сообщение канала.
	EventEdited
)

func (k EventKind) String() string {
	switch k {
	case EventNew:
		return "new"
	case EventEdited:
		return "edited"
	default:
		return "ignored"
	}
}

// FeedEvent — результат классификации одного апдейта ленты.
type FeedEvent struct {
	Kind          EventKind
	UpdateID      int64
	MessageID     int64
	ChannelID     int64
	Text          string
	AttachmentRef string
	// Reason объясняет, почему событие проигнорировано.
	Reason string
}
