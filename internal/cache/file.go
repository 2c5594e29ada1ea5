package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileBackend stores each entry as a JSON file inside a directory.
// The directory is created with 0700 permissions and files are written with
// 0600 permissions, since entries hold bearer tokens.
type FileBackend[V any] struct {
	dir string
}

// NewFileBackend creates a backend rooted at dir. The directory is created
// lazily on the first save.
func NewFileBackend[V any](dir string) *FileBackend[V] {
	return &FileBackend[V]{dir: dir}
}

// NewFile creates a Cache that persists entries under dir.
func NewFile[V any](dir string) *Cache[V] {
	return New[V](NewFileBackend[V](dir))
}

// Path returns the file used for key.
func (f *FileBackend[V]) Path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:16])+".json")
}

// Load reads the entry for key. A missing or unreadable-as-JSON file is
// reported as absent so that a corrupted cache heals on the next save.
func (f *FileBackend[V]) Load(ctx context.Context, key string) (Entry[V], bool, error) {
	data, err := os.ReadFile(f.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Entry[V]{}, false, nil
		}
		return Entry[V]{}, false, err
	}

	var entry Entry[V]
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry[V]{}, false, nil
	}
	return entry, true, nil
}

// Save writes the entry through a temporary file and a rename, so readers in
// other processes never observe a partial write.
func (f *FileBackend[V]) Save(ctx context.Context, key string, entry Entry[V]) error {
	if err := os.MkdirAll(f.dir, 0700); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".entry-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.Path(key))
}

// Delete removes the file for key. Returns nil if the file doesn't exist.
func (f *FileBackend[V]) Delete(ctx context.Context, key string) error {
	err := os.Remove(f.Path(key))
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
