package publish

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"tg-wp-mirror/internal/domain"
	"tg-wp-mirror/internal/infra/metrics"
)

// Service создаёт, обновляет и удаляет посты на сайте назначения.
type Service struct {
	dest  domain.Destination
	posts domain.PostRepo
	blobs domain.BlobStore
	log   zerolog.Logger
}

// NewService создаёт публикатор.
func NewService(dest domain.Destination, posts domain.PostRepo, blobs domain.BlobStore, log zerolog.Logger) *Service {
	return &Service{dest: dest, posts: posts, blobs: blobs, log: log}
}

// Draft описывает содержимое поста для одного сообщения.
type Draft struct {
	MessageID int64
	Title     string
	Content   string
	MediaPath string
}

// Publish создаёт пост; при наличии вложения сначала получает id медиа.
func (s *Service) Publish(ctx context.Context, target domain.Target, d Draft) (domain.RemotePost, error) {
	payload := domain.PostPayload{Title: d.Title, Content: d.Content, FeaturedMedia: s.ensureMedia(ctx, target, d)}
	post, err := s.dest.CreatePost(ctx, target, payload)
	metrics.ObserveDestinationOp("create", err)
	if err != nil {
		return domain.RemotePost{}, fmt.Errorf("создание поста для сообщения %d: %w", d.MessageID, err)
	}
	return post, nil
}

// Update обновляет пост; domain.ErrNotFound сигнализирует о необходимости пересоздать его.
func (s *Service) Update(ctx context.Context, target domain.Target, postID int64, d Draft) error {
	payload := domain.PostPayload{Title: d.Title, Content: d.Content, FeaturedMedia: s.ensureMedia(ctx, target, d)}
	err := s.dest.UpdatePost(ctx, target, postID, payload)
	metrics.ObserveDestinationOp("update", err)
	if err != nil {
		return fmt.Errorf("обновление поста %d: %w", postID, err)
	}
	return nil
}

// Delete удаляет пост без повторов; ошибка только логируется вызывающим.
func (s *Service) Delete(ctx context.Context, target domain.Target, postID int64) error {
	err := s.dest.DeletePost(ctx, target, postID)
	metrics.ObserveDestinationOp("delete", err)
	if err != nil {
		return fmt.Errorf("удаление поста %d: %w", postID, err)
	}
	return nil
}

// ensureMedia переиспользует сохранённый id медиа или загружает файл и сразу записывает id в хранилище.
// Сбой загрузки не мешает публикации: пост уходит без обложки.
func (s *Service) ensureMedia(ctx context.Context, target domain.Target, d Draft) *int64 {
	if d.MediaPath == "" {
		return nil
	}
	log := s.log.With().Int64("message_id", d.MessageID).Str("target", target.Key).Logger()
	row, ok, err := s.posts.Get(ctx, d.MessageID)
	if err != nil {
		log.Warn().Err(err).Msg("publish: не удалось прочитать строку, медиа пропущено")
		return nil
	}
	if ok && row.DestinationMediaID != nil {
		return row.DestinationMediaID
	}
	data, err := s.blobs.Read(ctx, d.MediaPath)
	if err != nil {
		log.Warn().Err(err).Str("path", d.MediaPath).Msg("publish: вложение не прочитано")
		return nil
	}
	id, err := s.dest.UploadMedia(ctx, target, domain.MediaFile{
		Name:        filepath.Base(d.MediaPath),
		ContentType: http.DetectContentType(data),
		Data:        data,
	})
	metrics.ObserveDestinationOp("upload_media", err)
	if err != nil {
		log.Warn().Err(err).Msg("publish: медиа не загружено, пост без обложки")
		return nil
	}
	metrics.MediaUploads.Inc()
	if err := s.posts.SetDestinationIDs(ctx, d.MessageID, domain.DestinationIDs{MediaID: &id}); err != nil {
		log.Error().Err(err).Int64("media_id", id).Msg("publish: id медиа не сохранён")
	}
	return &id
}

// Title берёт первую строку текста и обрезает её. Пустой текст даёт "#<message_id>".
func Title(messageID int64, text string, limit int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return fmt.Sprintf("#%d", messageID)
	}
	return domain.Truncate(line, limit)
}
