// ABOUTME: File-backed Persister writing one snapshot file per key with atomic rename.
// ABOUTME: Writes go to a temp file, are fsynced, then renamed over the previous snapshot.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps each snapshot as a file on disk.
type FileStore struct {
	pathFor func(key string) string
}

// NewFileStore stores snapshots as dir/<key>.json.
func NewFileStore(dir string) *FileStore {
	return &FileStore{pathFor: func(key string) string {
		return filepath.Join(dir, key+".json")
	}}
}

// NewLayoutFileStore stores each snapshot at the path returned by pathFor.
func NewLayoutFileStore(pathFor func(key string) string) *FileStore {
	return &FileStore{pathFor: pathFor}
}

// Save writes data atomically, creating parent directories as needed.
func (s *FileStore) Save(_ context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return writeAtomic(s.pathFor(key), data)
}

// Load reads the snapshot for key.
func (s *FileStore) Load(_ context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, missing(key)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// Delete removes the snapshot for key. Deleting a missing key is not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.pathFor(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

// writeAtomic writes to path.tmp, fsyncs, renames over path and syncs the
// parent directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmpPath := path + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write snapshot data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("fsync snapshot: %w", err)
	}
	_ = tmpFile.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
