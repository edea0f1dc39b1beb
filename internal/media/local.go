package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps images under Dir and serves them from BaseURL.
type FileStore struct {
	Dir     string
	BaseURL string // e.g. "/media"
}

// NewFileStore creates the root directory if needed.
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media dir: %w", err)
	}
	return &FileStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save writes img to a new file and returns its public URL.
func (s *FileStore) Save(_ context.Context, img *Image) (string, error) {
	key := objectKey(img)
	path := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return "", err
	}
	return s.BaseURL + "/" + key, nil
}

// Delete removes the file behind ref. Unknown or foreign refs are ignored.
func (s *FileStore) Delete(_ context.Context, ref string) error {
	key, ok := strings.CutPrefix(ref, s.BaseURL+"/")
	if !ok || key == "" || strings.Contains(key, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(s.Dir, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
