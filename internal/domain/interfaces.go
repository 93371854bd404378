package domain

import (
	"context"
	"time"
)

// PostRepo — долговременная таблица соответствия сообщений и постов назначения.
type PostRepo interface {
	EnsureSchema(ctx context.Context) error
	UpsertText(ctx context.Context, messageID int64, text, language, imageRef, imageLocalPath string) error
	Get(ctx context.Context, messageID int64) (MirroredPost, bool, error)
	FindImage(ctx context.Context, imageRef string) (string, bool, error)
	SetDestinationIDs(ctx context.Context, messageID int64, ids DestinationIDs) error
	ListActive(ctx context.Context) ([]ActivePost, error)
	MarkDeleted(ctx context.Context, messageID int64) error
}

// CursorRepo хранит смещение ленты между проходами.
type CursorRepo interface {
	GetCursor(ctx context.Context, name string) (int64, bool, error)
	SetCursor(ctx context.Context, name string, value int64) error
}

// EventSource отдаёт классифицированные события ленты.
type EventSource interface {
	FetchEvents(ctx context.Context) ([]FeedEvent, error)
	Ack(ctx context.Context, lastUpdateID int64) error
}

// FileFetcher скачивает вложение по его идентификатору в ленте.
type FileFetcher interface {
	FetchFile(ctx context.Context, ref string) ([]byte, error)
}

// BlobStore хранит скачанные вложения под детерминированными именами.
type BlobStore interface {
	Stat(ctx context.Context, name string) (string, bool, error)
	Put(ctx context.Context, name string, data []byte) (string, error)
	Read(ctx context.Context, location string) ([]byte, error)
}

// MediaCache гарантирует локальную копию вложения.
type MediaCache interface {
	EnsureLocal(ctx context.Context, ref string) (string, error)
}

// LiveSnapshot возвращает множество сообщений, существующих в канале сейчас.
type LiveSnapshot interface {
	LiveMessageIDs(ctx context.Context, candidates []int64) (map[int64]struct{}, error)
}

// LanguageDetector определяет язык текста кодом ISO-639-1.
type LanguageDetector interface {
	Detect(text string) string
}

// Router выбирает сайт назначения по языку текста. Route тотален: любой текст,
// включая пустой, получает ровно один сайт.
type Router interface {
	Route(text string) (language string, target Target)
	Lookup(key string) Target
}

// Destination — REST-возможности сайта назначения.
type Destination interface {
	CreatePost(ctx context.Context, target Target, post PostPayload) (RemotePost, error)
	UpdatePost(ctx context.Context, target Target, postID int64, post PostPayload) error
	DeletePost(ctx context.Context, target Target, postID int64) error
	UploadMedia(ctx context.Context, target Target, file MediaFile) (int64, error)
}

// Announcer публикует анонс нового поста.
type Announcer interface {
	Announce(ctx context.Context, a Announcement) error
}

// PassLock не даёт двум проходам выполняться одновременно в разных процессах.
type PassLock interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}
