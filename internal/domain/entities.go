package domain

import "time"

// MirroredPost описывает одно сообщение канала и его копию на сайте назначения.
type MirroredPost struct {
	MessageID          int64
	Text               string
	TextLanguage       string
	ImageSourceRef     string
	ImageLocalPath     string
	DestinationTarget  string
	DestinationPostID  *int64
	DestinationMediaID *int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Deleted            bool
}

// HasDestination сообщает, создан ли уже пост на стороне назначения.
func (p MirroredPost) HasDestination() bool {
	return p.DestinationPostID != nil
}

// ActivePost описывает строку выборки ListActive.
type ActivePost struct {
	MessageID         int64
	DestinationTarget string
	DestinationPostID *int64
}

// DestinationIDs задаёт изменения идентификаторов назначения; nil означает «не менять».
type DestinationIDs struct {
	Target  *string
	PostID  *int64
	MediaID *int64
}

// Target описывает конкретный сайт назначения.
type Target struct {
	Key     string
	BaseURL string
}

// PostPayload — тело поста для создания или обновления.
type PostPayload struct {
	Title         string
	Content       string
	FeaturedMedia *int64
}

// RemotePost — пост, созданный на стороне назначения.
type RemotePost struct {
	ID   int64
	Link string
}

// MediaFile содержит вложение для загрузки на сайт назначения.
type MediaFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Announcement — анонс нового поста в социальной сети.
type Announcement struct {
	MessageID     int64  `json:"message_id"`
	Title         string `json:"title"`
	Text          string `json:"text"`
	Language      string `json:"language"`
	Link          string `json:"link,omitempty"`
	ImageLocation string `json:"image_location,omitempty"`
}
