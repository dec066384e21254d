package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// TempSuffix is appended to a target path to name its in-flight sibling.
const TempSuffix = ".tmp"

// Store writes files so that readers see either the previous content or the
// new content in full, never a partial write. It assumes a single writer per
// path; a crash between write and rename can leave a TempSuffix file behind.
type Store struct {
	DirPerm  fs.FileMode
	FilePerm fs.FileMode
}

// New returns a Store with conventional permissions.
func New() *Store {
	return &Store{DirPerm: 0755, FilePerm: 0644}
}

// EnsureDir creates path and any missing parents.
func (s *Store) EnsureDir(path string) error {
	if err := os.MkdirAll(path, s.DirPerm); err != nil {
		return fmt.Errorf("create dir %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists. Any stat failure other than "not exist"
// is returned so the caller does not mistake it for a cache miss.
func (s *Store) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

// WriteAtomic writes data to a temporary sibling of path, syncs it and renames
// it onto path.
func (s *Store) WriteAtomic(path string, data []byte) error {
	tmp := path + TempSuffix
	if err := s.writeTemp(tmp, data); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Store) writeTemp(tmp string, data []byte) error {
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.FilePerm)
	if err != nil {
		return fmt.Errorf("open temp: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	return nil
}
