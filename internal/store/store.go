// Package store persists generated artifacts. Writes are create-only: an
// existing destination is never overwritten.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"testgen/internal/logging"
)

// ArtifactStore is the sink for rendered test files.
type ArtifactStore interface {
	// Exists reports whether something already occupies path.
	Exists(path string) (bool, error)

	// WriteIfAbsent creates path with content. It returns written=false and
	// no error when path already exists.
	WriteIfAbsent(path string, content []byte) (written bool, err error)

	// EnsureDir creates dir and its parents.
	EnsureDir(dir string) error
}

// =============================================================================
// FILESYSTEM
// =============================================================================

// FSStore writes artifacts to the local filesystem.
type FSStore struct {
	dirMode  os.FileMode
	fileMode os.FileMode
}

// NewFSStore creates a filesystem store.
func NewFSStore() *FSStore {
	return &FSStore{dirMode: 0755, fileMode: 0644}
}

// Exists implements ArtifactStore.
func (s *FSStore) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

// EnsureDir implements ArtifactStore.
func (s *FSStore) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, s.dirMode); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// WriteIfAbsent implements ArtifactStore using an exclusive create, so a file
// that appears between Exists and the write is still left untouched.
func (s *FSStore) WriteIfAbsent(path string, content []byte) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), s.dirMode); err != nil {
		return false, fmt.Errorf("create directory for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.fileMode)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			logging.StoreDebug("destination exists, not writing: %s", path)
			return false, nil
		}
		return false, fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(path)
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return false, fmt.Errorf("close %s: %w", path, err)
	}

	logging.Store("wrote %s (%d bytes)", path, len(content))
	return true, nil
}

// =============================================================================
// IN-MEMORY
// =============================================================================

// MemStore keeps artifacts in memory. Used by dry runs and tests.
type MemStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string][]byte)}
}

// Seed marks path as occupied without counting it as written.
func (s *MemStore) Seed(path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[filepath.Clean(path)] = append([]byte(nil), content...)
}

// Exists implements ArtifactStore.
func (s *MemStore) Exists(path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[filepath.Clean(path)]
	return ok, nil
}

// WriteIfAbsent implements ArtifactStore.
func (s *MemStore) WriteIfAbsent(path string, content []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := filepath.Clean(path)
	if _, ok := s.files[key]; ok {
		return false, nil
	}
	s.files[key] = append([]byte(nil), content...)
	return true, nil
}

// EnsureDir implements ArtifactStore. Directories are implicit in memory.
func (s *MemStore) EnsureDir(string) error {
	return nil
}

// Paths returns every stored path, sorted.
func (s *MemStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// =============================================================================
// OVERLAY
// =============================================================================

// Overlay stages writes in memory on top of a base store that is only read.
// Dry runs use it so a destination claimed earlier in the run reads as
// existing, exactly as it would after a real write.
type Overlay struct {
	base   ArtifactStore
	staged *MemStore
}

// NewOverlay wraps base.
func NewOverlay(base ArtifactStore) *Overlay {
	return &Overlay{base: base, staged: NewMemStore()}
}

// Exists implements ArtifactStore.
func (o *Overlay) Exists(path string) (bool, error) {
	if ok, _ := o.staged.Exists(path); ok {
		return true, nil
	}
	return o.base.Exists(path)
}

// WriteIfAbsent implements ArtifactStore. Nothing reaches the base store.
func (o *Overlay) WriteIfAbsent(path string, content []byte) (bool, error) {
	exists, err := o.base.Exists(path)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	return o.staged.WriteIfAbsent(path, content)
}

// EnsureDir implements ArtifactStore. Staged directories are implicit.
func (o *Overlay) EnsureDir(string) error {
	return nil
}

// Staged returns the paths written to the overlay, sorted.
func (o *Overlay) Staged() []string {
	return o.staged.Paths()
}
