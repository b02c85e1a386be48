// Package registry is the file-locked JSON persistence layer behind the
// worktree context registry: a single per-user document, keyed by
// canonical worktree-root path, updated through a lock-protected
// read-mutate-write-atomically cycle so multiple processes on the same
// machine can coexist safely.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Document is the on-disk shape of a registry file.
type Document[T any] struct {
	Worktrees map[string]T `json:"worktrees"`
}

func emptyDocument[T any]() Document[T] {
	return Document[T]{Worktrees: map[string]T{}}
}

// Store is a generic file-backed registry of type T values keyed by string
// (a canonical filesystem path, in this module's usage).
type Store[T any] struct {
	dataPath string
	lockPath string
}

// NewStore returns a Store backed by dataPath, with a co-located lock file
// at dataPath+".lock".
func NewStore[T any](dataPath string) *Store[T] {
	return &Store[T]{dataPath: dataPath, lockPath: dataPath + ".lock"}
}

// DataPath returns the path of the underlying JSON document.
func (s *Store[T]) DataPath() string { return s.dataPath }

// Read returns the current document under a shared lock. A missing or
// corrupt file degrades to an empty document rather than raising an error —
// a registry read must never fail a caller just because nothing has been
// written yet, or because a previous write was interrupted.
func (s *Store[T]) Read() (Document[T], error) {
	if _, err := os.Stat(s.dataPath); os.IsNotExist(err) {
		return emptyDocument[T](), nil
	}
	fl := flock.New(s.lockPath)
	if err := fl.RLock(); err != nil {
		return emptyDocument[T](), fmt.Errorf("locking registry for read: %w", err)
	}
	defer fl.Unlock()

	return s.readUnlocked(), nil
}

func (s *Store[T]) readUnlocked() Document[T] {
	data, err := os.ReadFile(s.dataPath)
	if err != nil {
		return emptyDocument[T]()
	}
	var doc Document[T]
	if err := json.Unmarshal(data, &doc); err != nil {
		return emptyDocument[T]()
	}
	if doc.Worktrees == nil {
		doc.Worktrees = map[string]T{}
	}
	return doc
}

// Update is the sole write primitive: it acquires an exclusive lock on the
// lock file, reads the current document (degrading to empty on
// absence/corruption), applies mutator, and atomically replaces the data
// file (write to a temp sibling, fsync, rename-over) before releasing the
// lock.
func (s *Store[T]) Update(mutator func(doc *Document[T]) error) error {
	if err := os.MkdirAll(filepath.Dir(s.dataPath), 0o755); err != nil {
		return fmt.Errorf("creating registry dir: %w", err)
	}

	fl := flock.New(s.lockPath)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("locking registry for update: %w", err)
	}
	defer fl.Unlock()

	doc := s.readUnlocked()
	if err := mutator(&doc); err != nil {
		return err
	}

	return writeAtomic(s.dataPath, doc)
}

func writeAtomic[T any](path string, doc Document[T]) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".registry-*.tmp")
	if err != nil {
		return fmt.Errorf("creating registry temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing registry temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing registry temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing registry temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing registry file: %w", err)
	}
	return nil
}

// Add inserts or replaces the entry at key under one lock cycle.
func (s *Store[T]) Add(key string, entry T) error {
	return s.Update(func(doc *Document[T]) error {
		doc.Worktrees[key] = entry
		return nil
	})
}

// Remove deletes the entry at key, if present, under one lock cycle.
func (s *Store[T]) Remove(key string) error {
	return s.Update(func(doc *Document[T]) error {
		delete(doc.Worktrees, key)
		return nil
	})
}

// RemoveBatch deletes many entries under a single lock cycle, so a prune
// sweep touching dozens of stale contexts does not take and release the
// lock once per entry.
func (s *Store[T]) RemoveBatch(keys []string) error {
	return s.Update(func(doc *Document[T]) error {
		for _, k := range keys {
			delete(doc.Worktrees, k)
		}
		return nil
	})
}

// List returns a snapshot of all entries.
func (s *Store[T]) List() (map[string]T, error) {
	doc, err := s.Read()
	if err != nil {
		return nil, err
	}
	return doc.Worktrees, nil
}

// CanonicalKey resolves path to its canonical form (symlinks resolved,
// "."/".." normalised) for use as a registry key. If canonicalisation fails
// because the path does not yet exist, the literal (but filepath.Clean'd)
// path is used instead — this prevents double-entries for the common case
// (same directory reached via a symlink) without requiring the path to
// already exist.
func CanonicalKey(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return resolved
}

// DefaultDataDir returns the per-user data directory entries are stored
// under by default: $XDG_DATA_HOME/meta or ~/.local/share/meta.
func DefaultDataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "meta"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "meta"), nil
}
