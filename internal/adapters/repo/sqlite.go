package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tg-wp-mirror/internal/domain"
	"tg-wp-mirror/internal/infra/metrics"
)

// SQLite реализует хранилище сверки поверх одного файла SQLite.
// Пул ограничен одним соединением (см. db.OpenSQLite), поэтому чтение сразу после записи видит её.
type SQLite struct {
	db *sql.DB
}

var (
	_ domain.PostRepo   = (*SQLite)(nil)
	_ domain.CursorRepo = (*SQLite)(nil)
)

// NewSQLite создаёт адаптер.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS posts (
	message_id           INTEGER PRIMARY KEY,
	text                 TEXT NOT NULL DEFAULT '',
	text_language        TEXT NOT NULL DEFAULT '',
	image_source_ref     TEXT,
	image_local_path     TEXT,
	destination_target   TEXT,
	destination_post_id  INTEGER,
	destination_media_id INTEGER,
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL,
	deleted              INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS posts_image_source_ref_idx ON posts (image_source_ref);
CREATE TABLE IF NOT EXISTS feed_cursor (
	name       TEXT PRIMARY KEY,
	value      INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);
`

const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

func nowText() string {
	return time.Now().UTC().Format(sqliteTimeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, value)
	if err != nil {
		return time.Parse(time.RFC3339Nano, value)
	}
	return t.UTC(), nil
}

// EnsureSchema создаёт таблицы, если их ещё нет.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	metrics.ObserveNetworkRequest("sqlite", "ensure_schema", "posts", start, err)
	return err
}

// UpsertText вставляет строку или обновляет текст живой строки, не трогая идентификаторы назначения.
func (s *SQLite) UpsertText(ctx context.Context, messageID int64, text, language, imageRef, imageLocalPath string) error {
	now := nowText()
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO posts (message_id, text, text_language, image_source_ref, image_local_path, created_at, updated_at, deleted)
VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, 0)
ON CONFLICT (message_id) DO UPDATE SET
	text = excluded.text,
	text_language = excluded.text_language,
	image_source_ref = COALESCE(posts.image_source_ref, excluded.image_source_ref),
	image_local_path = COALESCE(excluded.image_local_path, posts.image_local_path),
	updated_at = excluded.updated_at
WHERE posts.deleted = 0
`, messageID, text, language, imageRef, imageLocalPath, now, now)
	metrics.ObserveNetworkRequest("sqlite", "posts_upsert", "posts", start, err)
	return err
}

// Get возвращает строку по message_id.
func (s *SQLite) Get(ctx context.Context, messageID int64) (domain.MirroredPost, bool, error) {
	var (
		post                        domain.MirroredPost
		imageRef, imagePath, target sql.NullString
		postID, mediaID             sql.NullInt64
		createdAt, updatedAt        string
		deleted                     int
	)
	start := time.Now()
	err := s.db.QueryRowContext(ctx, `
SELECT message_id, text, text_language, image_source_ref, image_local_path, destination_target,
       destination_post_id, destination_media_id, created_at, updated_at, deleted
FROM posts WHERE message_id = ?
`, messageID).Scan(&post.MessageID, &post.Text, &post.TextLanguage, &imageRef, &imagePath, &target,
		&postID, &mediaID, &createdAt, &updatedAt, &deleted)
	metrics.ObserveNetworkRequest("sqlite", "posts_get", "posts", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MirroredPost{}, false, nil
	}
	if err != nil {
		return domain.MirroredPost{}, false, err
	}
	post.ImageSourceRef = imageRef.String
	post.ImageLocalPath = imagePath.String
	post.DestinationTarget = target.String
	post.DestinationPostID = nullInt(postID)
	post.DestinationMediaID = nullInt(mediaID)
	post.Deleted = deleted != 0
	if post.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.MirroredPost{}, false, fmt.Errorf("parse created_at: %w", err)
	}
	if post.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.MirroredPost{}, false, fmt.Errorf("parse updated_at: %w", err)
	}
	return post, true, nil
}

// FindImage ищет уже скачанную копию вложения по его ref.
func (s *SQLite) FindImage(ctx context.Context, imageRef string) (string, bool, error) {
	var path string
	start := time.Now()
	err := s.db.QueryRowContext(ctx, `
SELECT image_local_path FROM posts
WHERE image_source_ref = ? AND image_local_path IS NOT NULL AND image_local_path <> ''
LIMIT 1
`, imageRef).Scan(&path)
	metrics.ObserveNetworkRequest("sqlite", "posts_find_image", "posts", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}

// SetDestinationIDs записывает идентификаторы назначения; nil-поля не меняются.
func (s *SQLite) SetDestinationIDs(ctx context.Context, messageID int64, ids domain.DestinationIDs) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
UPDATE posts SET
	destination_target = COALESCE(?, destination_target),
	destination_post_id = COALESCE(?, destination_post_id),
	destination_media_id = COALESCE(?, destination_media_id),
	updated_at = ?
WHERE message_id = ?
`, ids.Target, ids.PostID, ids.MediaID, nowText(), messageID)
	metrics.ObserveNetworkRequest("sqlite", "posts_set_destination", "posts", start, err)
	return err
}

// ListActive возвращает неудалённые строки.
func (s *SQLite) ListActive(ctx context.Context) ([]domain.ActivePost, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
SELECT message_id, destination_target, destination_post_id
FROM posts WHERE deleted = 0 ORDER BY message_id
`)
	metrics.ObserveNetworkRequest("sqlite", "posts_list_active", "posts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ActivePost
	for rows.Next() {
		var (
			item   domain.ActivePost
			target sql.NullString
			postID sql.NullInt64
		)
		if err := rows.Scan(&item.MessageID, &target, &postID); err != nil {
			return nil, err
		}
		item.DestinationTarget = target.String
		item.DestinationPostID = nullInt(postID)
		out = append(out, item)
	}
	return out, rows.Err()
}

// MarkDeleted помечает строку удалённой.
func (s *SQLite) MarkDeleted(ctx context.Context, messageID int64) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `UPDATE posts SET deleted = 1, updated_at = ? WHERE message_id = ?`, nowText(), messageID)
	metrics.ObserveNetworkRequest("sqlite", "posts_mark_deleted", "posts", start, err)
	return err
}

// GetCursor возвращает сохранённое смещение ленты.
func (s *SQLite) GetCursor(ctx context.Context, name string) (int64, bool, error) {
	var value int64
	start := time.Now()
	err := s.db.QueryRowContext(ctx, `SELECT value FROM feed_cursor WHERE name = ?`, name).Scan(&value)
	metrics.ObserveNetworkRequest("sqlite", "cursor_get", "feed_cursor", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

// SetCursor сохраняет смещение ленты.
func (s *SQLite) SetCursor(ctx context.Context, name string, value int64) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO feed_cursor (name, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`, name, value, nowText())
	metrics.ObserveNetworkRequest("sqlite", "cursor_set", "feed_cursor", start, err)
	return err
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
