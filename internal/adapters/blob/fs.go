package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"tg-wp-mirror/internal/domain"
)

// FS хранит вложения файлами в каталоге; location — путь к файлу.
type FS struct {
	dir string
}

var _ domain.BlobStore = (*FS)(nil)

// NewFS создаёт хранилище, каталог создаётся при первой записи.
func NewFS(dir string) *FS {
	return &FS{dir: dir}
}

func (s *FS) Stat(_ context.Context, name string) (string, bool, error) {
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if info.IsDir() || info.Size() == 0 {
		return "", false, nil
	}
	return path, true, nil
}

// Put записывает файл атомарно через временный файл.
func (s *FS) Put(_ context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close media: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("rename media: %w", err)
	}
	return path, nil
}

func (s *FS) Read(_ context.Context, location string) ([]byte, error) {
	return os.ReadFile(location)
}
