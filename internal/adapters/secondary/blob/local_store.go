package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// LocalStore keeps attachment bytes on disk below a root directory.
type LocalStore struct {
	root string
}

var _ ports.BlobStore = (*LocalStore)(nil)

func NewLocalStore(root string) (ports.BlobStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Store writes data to tickets/<ticketID>/<name> and returns that relative path.
func (s *LocalStore) Store(_ context.Context, data []byte, name string, ticketID int64) (string, error) {
	key := objectKey(ticketID, name)
	full, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create ticket dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o640); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return key, nil
}

func (s *LocalStore) Read(_ context.Context, handle string) ([]byte, error) {
	full, err := s.resolve(handle)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", handle, err)
	}
	return data, nil
}

// resolve maps a key to a path and refuses anything outside the root.
func (s *LocalStore) resolve(key string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return full, nil
}
