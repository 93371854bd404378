package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-wp-mirror/internal/domain"
	"tg-wp-mirror/internal/infra/metrics"
)

// Postgres реализует хранилище сверки на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.PostRepo   = (*Postgres)(nil)
	_ domain.CursorRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS posts (
	message_id           BIGINT PRIMARY KEY,
	text                 TEXT NOT NULL DEFAULT '',
	text_language        TEXT NOT NULL DEFAULT '',
	image_source_ref     TEXT,
	image_local_path     TEXT,
	destination_target   TEXT,
	destination_post_id  BIGINT,
	destination_media_id BIGINT,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL,
	deleted              BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS posts_image_source_ref_idx ON posts (image_source_ref);
CREATE TABLE IF NOT EXISTS feed_cursor (
	name       TEXT PRIMARY KEY,
	value      BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 5*time.Second)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureSchema создаёт таблицы, если их ещё нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, pgSchema)
	metrics.ObserveNetworkRequest("postgres", "ensure_schema", "posts", start, err)
	return err
}

// UpsertText вставляет строку или обновляет текст живой строки, не трогая идентификаторы назначения.
func (p *Postgres) UpsertText(ctx context.Context, messageID int64, text, language, imageRef, imageLocalPath string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	now := time.Now().UTC()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO posts (message_id, text, text_language, image_source_ref, image_local_path, created_at, updated_at, deleted)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $6, FALSE)
ON CONFLICT (message_id) DO UPDATE SET
	text = EXCLUDED.text,
	text_language = EXCLUDED.text_language,
	image_source_ref = COALESCE(posts.image_source_ref, EXCLUDED.image_source_ref),
	image_local_path = COALESCE(EXCLUDED.image_local_path, posts.image_local_path),
	updated_at = EXCLUDED.updated_at
WHERE posts.deleted = FALSE
`, messageID, text, language, imageRef, imageLocalPath, now)
	metrics.ObserveNetworkRequest("postgres", "posts_upsert", "posts", start, err)
	return err
}

// Get возвращает строку по message_id.
func (p *Postgres) Get(ctx context.Context, messageID int64) (domain.MirroredPost, bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	var (
		post                        domain.MirroredPost
		imageRef, imagePath, target *string
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT message_id, text, text_language, image_source_ref, image_local_path, destination_target,
       destination_post_id, destination_media_id, created_at, updated_at, deleted
FROM posts WHERE message_id = $1
`, messageID).Scan(&post.MessageID, &post.Text, &post.TextLanguage, &imageRef, &imagePath, &target,
		&post.DestinationPostID, &post.DestinationMediaID, &post.CreatedAt, &post.UpdatedAt, &post.Deleted)
	metrics.ObserveNetworkRequest("postgres", "posts_get", "posts", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MirroredPost{}, false, nil
	}
	if err != nil {
		return domain.MirroredPost{}, false, err
	}
	post.ImageSourceRef = deref(imageRef)
	post.ImageLocalPath = deref(imagePath)
	post.DestinationTarget = deref(target)
	post.CreatedAt = post.CreatedAt.UTC()
	post.UpdatedAt = post.UpdatedAt.UTC()
	return post, true, nil
}

// FindImage ищет уже скачанную копию вложения по его ref.
func (p *Postgres) FindImage(ctx context.Context, imageRef string) (string, bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	var path string
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT image_local_path FROM posts
WHERE image_source_ref = $1 AND image_local_path IS NOT NULL AND image_local_path <> ''
LIMIT 1
`, imageRef).Scan(&path)
	metrics.ObserveNetworkRequest("postgres", "posts_find_image", "posts", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}

// SetDestinationIDs записывает идентификаторы назначения; nil-поля не меняются.
func (p *Postgres) SetDestinationIDs(ctx context.Context, messageID int64, ids domain.DestinationIDs) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE posts SET
	destination_target = COALESCE($2, destination_target),
	destination_post_id = COALESCE($3, destination_post_id),
	destination_media_id = COALESCE($4, destination_media_id),
	updated_at = $5
WHERE message_id = $1
`, messageID, ids.Target, ids.PostID, ids.MediaID, time.Now().UTC())
	metrics.ObserveNetworkRequest("postgres", "posts_set_destination", "posts", start, err)
	return err
}

// ListActive возвращает неудалённые строки.
func (p *Postgres) ListActive(ctx context.Context) ([]domain.ActivePost, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT message_id, destination_target, destination_post_id
FROM posts WHERE deleted = FALSE ORDER BY message_id
`)
	metrics.ObserveNetworkRequest("postgres", "posts_list_active", "posts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ActivePost
	for rows.Next() {
		var (
			item   domain.ActivePost
			target *string
		)
		if err := rows.Scan(&item.MessageID, &target, &item.DestinationPostID); err != nil {
			return nil, err
		}
		item.DestinationTarget = deref(target)
		out = append(out, item)
	}
	return out, rows.Err()
}

// MarkDeleted помечает строку удалённой.
func (p *Postgres) MarkDeleted(ctx context.Context, messageID int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE posts SET deleted = TRUE, updated_at = $2 WHERE message_id = $1`, messageID, time.Now().UTC())
	metrics.ObserveNetworkRequest("postgres", "posts_mark_deleted", "posts", start, err)
	return err
}

// GetCursor возвращает сохранённое смещение ленты.
func (p *Postgres) GetCursor(ctx context.Context, name string) (int64, bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	var value int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT value FROM feed_cursor WHERE name = $1`, name).Scan(&value)
	metrics.ObserveNetworkRequest("postgres", "cursor_get", "feed_cursor", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

// SetCursor сохраняет смещение ленты.
func (p *Postgres) SetCursor(ctx context.Context, name string, value int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO feed_cursor (name, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`, name, value)
	metrics.ObserveNetworkRequest("postgres", "cursor_set", "feed_cursor", start, err)
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
