package training

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Checkpoint slot names used by the trainer.
const (
	CheckpointBest  = "best"
	CheckpointFinal = "final"
)

// CheckpointStore persists opaque model snapshots. The trainer overwrites
// the "best" slot whenever validation loss improves and writes "final" once
// at the end of a run.
type CheckpointStore interface {
	// Put stores a snapshot under the given slot, replacing any previous one.
	Put(slot string, blob []byte) error

	// Get returns the snapshot stored under the slot.
	Get(slot string) ([]byte, error)
}

// MemoryStore keeps checkpoints in process memory. Intended for tests and
// short-lived runs.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put stores a copy of the snapshot.
func (s *MemoryStore) Put(slot string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[slot] = append([]byte(nil), blob...)
	return nil
}

// Get returns the snapshot stored under the slot.
func (s *MemoryStore) Get(slot string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.blobs[slot]
	if !ok {
		return nil, fmt.Errorf("training: no %q checkpoint stored", slot)
	}
	return append([]byte(nil), blob...), nil
}

// FileStore keeps checkpoints as files in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a checkpoint store rooted at dir, creating it if
// needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("training: creating checkpoint dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Put writes the snapshot to <dir>/<slot>.gob.
func (s *FileStore) Put(slot string, blob []byte) error {
	path := filepath.Join(s.dir, slot+".gob")
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return fmt.Errorf("training: writing %q checkpoint: %w", slot, err)
	}
	return nil
}

// Get reads the snapshot from <dir>/<slot>.gob.
func (s *FileStore) Get(slot string) ([]byte, error) {
	path := filepath.Join(s.dir, slot+".gob")
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("training: reading %q checkpoint: %w", slot, err)
	}
	return blob, nil
}
