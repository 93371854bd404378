package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-wp-mirror/internal/domain"
	"tg-wp-mirror/internal/infra/metrics"
)

const postCollection = "app.bsky.feed.post"

// Bluesky публикует анонс через XRPC: createSession, uploadBlob, createRecord.
type Bluesky struct {
	host      string
	handle    string
	password  string
	textLimit int
	blobs     domain.BlobStore
	http      *http.Client
	log       zerolog.Logger
}

var _ domain.Announcer = (*Bluesky)(nil)

// NewBluesky создаёт клиента. blobs нужен для чтения обложки анонса.
func NewBluesky(host, handle, password string, textLimit int, blobs domain.BlobStore, log zerolog.Logger) *Bluesky {
	return &Bluesky{
		host:      strings.TrimRight(host, "/"),
		handle:    handle,
		password:  password,
		textLimit: textLimit,
		blobs:     blobs,
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       log,
	}
}

type session struct {
	AccessJwt string `json:"accessJwt"`
	Did       string `json:"did"`
}

type external struct {
	URI         string          `json:"uri"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Thumb       json.RawMessage `json:"thumb,omitempty"`
}

type embed struct {
	Type     string   `json:"$type"`
	External external `json:"external"`
}

type postRecord struct {
	Type      string   `json:"$type"`
	Text      string   `json:"text"`
	CreatedAt string   `json:"createdAt"`
	Langs     []string `json:"langs,omitempty"`
	Embed     *embed   `json:"embed,omitempty"`
}

// Announce публикует пост со ссылкой на запись сайта.
func (b *Bluesky) Announce(ctx context.Context, a domain.Announcement) error {
	sess, err := b.createSession(ctx)
	if err != nil {
		return err
	}
	record := postRecord{
		Type:      postCollection,
		Text:      domain.Truncate(a.Title, b.textLimit),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if a.Language != "" {
		record.Langs = []string{a.Language}
	}
	if a.Link != "" {
		ext := external{URI: a.Link, Title: a.Title, Description: domain.Truncate(a.Text, b.textLimit)}
		if a.ImageLocation != "" && b.blobs != nil {
			thumb, err := b.uploadThumb(ctx, sess, a.ImageLocation)
			if err != nil {
				b.log.Warn().Err(err).Int64("message_id", a.MessageID).Msg("bluesky: обложка не загружена")
			} else {
				ext.Thumb = thumb
			}
		}
		record.Embed = &embed{Type: "app.bsky.embed.external", External: ext}
	}
	body := map[string]any{
		"repo":       sess.Did,
		"collection": postCollection,
		"record":     record,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return b.call(ctx, "com.atproto.repo.createRecord", sess.AccessJwt, "application/json", raw, nil)
}

func (b *Bluesky) createSession(ctx context.Context) (session, error) {
	raw, err := json.Marshal(map[string]string{"identifier": b.handle, "password": b.password})
	if err != nil {
		return session{}, fmt.Errorf("marshal session: %w", err)
	}
	var sess session
	if err := b.call(ctx, "com.atproto.server.createSession", "", "application/json", raw, &sess); err != nil {
		return session{}, err
	}
	if sess.AccessJwt == "" || sess.Did == "" {
		return session{}, fmt.Errorf("%w: createSession: empty session", domain.ErrPublish)
	}
	return sess, nil
}

func (b *Bluesky) uploadThumb(ctx context.Context, sess session, location string) (json.RawMessage, error) {
	data, err := b.blobs.Read(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	var out struct {
		Blob json.RawMessage `json:"blob"`
	}
	if err := b.call(ctx, "com.atproto.repo.uploadBlob", sess.AccessJwt, http.DetectContentType(data), data, &out); err != nil {
		return nil, err
	}
	return out.Blob, nil
}

func (b *Bluesky) call(ctx context.Context, method, token, contentType string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.host+"/xrpc/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := b.http.Do(req)
	metrics.ObserveNetworkRequest("bluesky", method, b.host, start, err)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrTransport, method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		kind := domain.ErrPublish
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			kind = domain.ErrTransport
		}
		return fmt.Errorf("%w: %s: status %d: %s", kind, method, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", method, err)
	}
	return nil
}
