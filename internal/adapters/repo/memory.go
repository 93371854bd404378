package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"tg-wp-mirror/internal/domain"
)

// Memory хранит таблицу сверки в памяти процесса (STORE_DRIVER=memory).
type Memory struct {
	mu      sync.Mutex
	posts   map[int64]domain.MirroredPost
	cursors map[string]int64
	now     func() time.Time
}

var (
	_ domain.PostRepo   = (*Memory)(nil)
	_ domain.CursorRepo = (*Memory)(nil)
)

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{
		posts:   make(map[int64]domain.MirroredPost),
		cursors: make(map[string]int64),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// EnsureSchema ничего не делает.
func (m *Memory) EnsureSchema(context.Context) error { return nil }

func (m *Memory) UpsertText(_ context.Context, messageID int64, text, language, imageRef, imageLocalPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	post, ok := m.posts[messageID]
	if !ok {
		m.posts[messageID] = domain.MirroredPost{
			MessageID:      messageID,
			Text:           text,
			TextLanguage:   language,
			ImageSourceRef: imageRef,
			ImageLocalPath: imageLocalPath,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return nil
	}
	if post.Deleted {
		return nil
	}
	post.Text = text
	post.TextLanguage = language
	if post.ImageSourceRef == "" {
		post.ImageSourceRef = imageRef
	}
	if imageLocalPath != "" {
		post.ImageLocalPath = imageLocalPath
	}
	post.UpdatedAt = now
	m.posts[messageID] = post
	return nil
}

func (m *Memory) Get(_ context.Context, messageID int64) (domain.MirroredPost, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[messageID]
	if !ok {
		return domain.MirroredPost{}, false, nil
	}
	post.DestinationPostID = cloneID(post.DestinationPostID)
	post.DestinationMediaID = cloneID(post.DestinationMediaID)
	return post, true, nil
}

func (m *Memory) FindImage(_ context.Context, imageRef string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, post := range m.posts {
		if post.ImageSourceRef == imageRef && post.ImageLocalPath != "" {
			return post.ImageLocalPath, true, nil
		}
	}
	return "", false, nil
}

func (m *Memory) SetDestinationIDs(_ context.Context, messageID int64, ids domain.DestinationIDs) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[messageID]
	if !ok {
		return nil
	}
	if ids.Target != nil {
		post.DestinationTarget = *ids.Target
	}
	if ids.PostID != nil {
		post.DestinationPostID = cloneID(ids.PostID)
	}
	if ids.MediaID != nil {
		post.DestinationMediaID = cloneID(ids.MediaID)
	}
	post.UpdatedAt = m.now()
	m.posts[messageID] = post
	return nil
}

func (m *Memory) ListActive(context.Context) ([]domain.ActivePost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ActivePost
	for _, post := range m.posts {
		if post.Deleted {
			continue
		}
		out = append(out, domain.ActivePost{
			MessageID:         post.MessageID,
			DestinationTarget: post.DestinationTarget,
			DestinationPostID: cloneID(post.DestinationPostID),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out, nil
}

func (m *Memory) MarkDeleted(_ context.Context, messageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[messageID]
	if !ok {
		return nil
	}
	post.Deleted = true
	post.UpdatedAt = m.now()
	m.posts[messageID] = post
	return nil
}

func (m *Memory) GetCursor(_ context.Context, name string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.cursors[name]
	return v, ok, nil
}

func (m *Memory) SetCursor(_ context.Context, name string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[name] = value
	return nil
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
