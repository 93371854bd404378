package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"tg-wp-mirror/internal/domain"
	"tg-wp-mirror/internal/infra/metrics"
)

// Cache скачивает вложение не более одного раза на ref.
type Cache struct {
	posts   domain.PostRepo
	fetcher domain.FileFetcher
	blobs   domain.BlobStore
	log     zerolog.Logger
}

var _ domain.MediaCache = (*Cache)(nil)

// NewCache создаёт кэш вложений.
func NewCache(posts domain.PostRepo, fetcher domain.FileFetcher, blobs domain.BlobStore, log zerolog.Logger) *Cache {
	return &Cache{posts: posts, fetcher: fetcher, blobs: blobs, log: log}
}

// EnsureLocal возвращает локальную копию вложения, скачивая его только при отсутствии.
func (c *Cache) EnsureLocal(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", errors.New("empty attachment ref")
	}
	if path, ok, err := c.posts.FindImage(ctx, ref); err != nil {
		return "", fmt.Errorf("поиск вложения в хранилище: %w", err)
	} else if ok {
		return path, nil
	}

	name := FileName(ref)
	if loc, ok, err := c.blobs.Stat(ctx, name); err != nil {
		return "", fmt.Errorf("проверка файла %s: %w", name, err)
	} else if ok {
		return loc, nil
	}

	data, err := c.fetcher.FetchFile(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrDownload) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrDownload, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file %s", domain.ErrDownload, ref)
	}
	loc, err := c.blobs.Put(ctx, name, data)
	if err != nil {
		return "", fmt.Errorf("сохранение вложения: %w", err)
	}
	metrics.MediaDownloads.Inc()
	c.log.Info().Str("ref", ref).Str("path", loc).Str("size", humanize.Bytes(uint64(len(data)))).Msg("media: вложение скачано")
	return loc, nil
}

// FileName строит детерминированное имя файла из ref.
func FileName(ref string) string {
	var b strings.Builder
	b.Grow(len(ref) + 4)
	for _, r := range ref {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	b.WriteString(".jpg")
	return b.String()
}
