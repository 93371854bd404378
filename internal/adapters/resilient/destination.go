package resilient

import (
	"context"

	"github.com/rs/zerolog"

	"tg-wp-mirror/internal/domain"
)

// Destination оборачивает сайт назначения повторами и ограничением частоты.
type Destination struct {
	next domain.Destination
	r    runner
}

var _ domain.Destination = (*Destination)(nil)

// NewDestination создаёт декоратор.
func NewDestination(next domain.Destination, p Policy, log zerolog.Logger) *Destination {
	return &Destination{next: next, r: newRunner(p, log)}
}

func (d *Destination) CreatePost(ctx context.Context, target domain.Target, post domain.PostPayload) (domain.RemotePost, error) {
	var out domain.RemotePost
	err := d.r.run(ctx, "create_post", func() error {
		var err error
		out, err = d.next.CreatePost(ctx, target, post)
		return err
	})
	return out, err
}

func (d *Destination) UpdatePost(ctx context.Context, target domain.Target, postID int64, post domain.PostPayload) error {
	return d.r.run(ctx, "update_post", func() error {
		return d.next.UpdatePost(ctx, target, postID, post)
	})
}

// DeletePost вызывается однократно: ограничение частоты есть, повторов нет.
func (d *Destination) DeletePost(ctx context.Context, target domain.Target, postID int64) error {
	if err := d.r.wait(ctx); err != nil {
		return err
	}
	return d.next.DeletePost(ctx, target, postID)
}

func (d *Destination) UploadMedia(ctx context.Context, target domain.Target, file domain.MediaFile) (int64, error) {
	var id int64
	err := d.r.run(ctx, "upload_media", func() error {
		var err error
		id, err = d.next.UploadMedia(ctx, target, file)
		return err
	})
	return id, err
}

// Files оборачивает скачивание вложений повторами.
type Files struct {
	next domain.FileFetcher
	r    runner
}

var _ domain.FileFetcher = (*Files)(nil)

// NewFiles создаёт декоратор.
func NewFiles(next domain.FileFetcher, p Policy, log zerolog.Logger) *Files {
	return &Files{next: next, r: newRunner(p, log)}
}

func (f *Files) FetchFile(ctx context.Context, ref string) ([]byte, error) {
	var data []byte
	err := f.r.run(ctx, "fetch_file", func() error {
		var err error
		data, err = f.next.FetchFile(ctx, ref)
		return err
	})
	return data, err
}
