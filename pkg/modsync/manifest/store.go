package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned by Store.Get for an unknown build ID.
var ErrNotFound = errors.New("manifest not found")

// Store keeps a history of built manifests in a directory, one JSON
// document per build named by its ID.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a Store rooted at dir.
// The directory is not created until EnsureDir or Record is called.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	return &Store{dir: dir}, nil
}

// Dir returns the history directory.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir creates the history directory if it does not exist.
func (s *Store) EnsureDir() error {
	return os.MkdirAll(s.dir, 0o755)
}

// Record persists m in the history.
func (s *Store) Record(m *Manifest) error {
	if m.ID == "" {
		return errors.New("manifest has no ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	if err := Save(filepath.Join(s.dir, m.ID+".json"), m); err != nil {
		return fmt.Errorf("failed to record manifest %s: %w", m.ID, err)
	}
	return nil
}

// List returns recorded manifests sorted by CreatedAt descending (newest first).
// If limit is 0 or negative, all manifests are returned.
func (s *Store) List(limit int) ([]*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Manifest{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	entries := []*Manifest{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		m, err := Load(filepath.Join(s.dir, f.Name()))
		if err != nil {
			// Skip documents that can't be parsed
			continue
		}
		entries = append(entries, m)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Created().After(entries[j].Created())
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Latest returns the newest recorded manifest.
func (s *Store) Latest() (*Manifest, error) {
	entries, err := s.List(1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries[0], nil
}

// Get retrieves a recorded manifest by ID.
func (s *Store) Get(id string) (*Manifest, error) {
	if id == "" {
		return nil, errors.New("manifest ID cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := Load(filepath.Join(s.dir, id+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return m, nil
}

// Cleanup removes recorded manifests older than retentionDays and returns
// how many were removed. Non-positive retention keeps everything.
func (s *Store) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	files, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read history directory: %w", err)
	}

	var removed int
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, f.Name())); err != nil {
				continue
			}
			removed++
		}
	}
	return removed, nil
}
