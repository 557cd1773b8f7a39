package persistence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mash-protocol/tagsched/pkg/subscription"
)

// SnapshotStore manages one snapshot file.
type SnapshotStore struct {
	mu   sync.Mutex
	path string
}

// NewSnapshotStore creates a store for path.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Path returns the snapshot file path.
func (s *SnapshotStore) Path() string {
	return s.path
}

// Save writes snap, replacing any previous file atomically.
func (s *SnapshotStore) Save(snap subscription.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := subscription.EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the snapshot. Returns nil, nil if the file doesn't exist.
func (s *SnapshotStore) Load() (*subscription.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap, err := subscription.DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return &snap, nil
}

// Clear removes the snapshot file.
func (s *SnapshotStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
