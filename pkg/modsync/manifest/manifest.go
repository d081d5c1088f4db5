package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
)

var (
	// ErrParse is returned when a manifest document cannot be decoded or
	// fails structural validation.
	ErrParse = errors.New("manifest parse error")

	// ErrInvalid marks a structurally inconsistent manifest.
	ErrInvalid = errors.New("invalid manifest")

	// ErrUnsafeName marks a file or chunk name that is not a single path
	// element and could resolve outside the directory it is joined to.
	ErrUnsafeName = errors.New("unsafe name")
)

// CheckName returns an error wrapping ErrUnsafeName unless name is a plain
// file name.
func CheckName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return nil
}

// Header holds the build settings recorded at the top of a manifest.
type Header struct {
	SourceDirectory     string
	HashAlgorithm       hashing.Algorithm
	TrackedExtensions   []string
	SplitThresholdBytes uint64
	ChunkSizeBytes      uint64
}

// New returns an empty manifest stamped with a fresh ID and the current time.
func New(h Header) *Manifest {
	algo := h.HashAlgorithm
	if algo == "" {
		algo = hashing.DefaultAlgorithm
	}
	return &Manifest{
		ID:                  uuid.NewString(),
		CreatedAt:           time.Now().UTC().Format(TimeLayout),
		HashAlgorithm:       algo,
		TrackedExtensions:   h.TrackedExtensions,
		SplitThresholdBytes: h.SplitThresholdBytes,
		ChunkSizeBytes:      h.ChunkSizeBytes,
		SourceDirectory:     h.SourceDirectory,
		Files:               []FileRecord{},
	}
}

// Encode writes m as indented JSON.
func Encode(w io.Writer, m *Manifest) error {
	out := *m
	if out.Files == nil {
		out.Files = []FileRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&out)
}

// Save writes m to path atomically using a temp file and rename.
func Save(path string, m *Manifest) error {
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Decode reads and validates a manifest document.
// Every failure wraps ErrParse.
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if m.Files == nil {
		m.Files = []FileRecord{}
	}
	return &m, nil
}

// Validate checks the structural invariants of the manifest.
func (m *Manifest) Validate() error {
	if _, err := hashing.ParseAlgorithm(string(m.HashAlgorithm)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	for i := range m.Files {
		if err := m.Files[i].Validate(); err != nil {
			return fmt.Errorf("%w: files[%d]: %w", ErrInvalid, i, err)
		}
	}
	return nil
}

// Validate checks a single record. A chunked record must carry a
// consistent chunk set describing the same original content.
func (f *FileRecord) Validate() error {
	if f.Name == "" {
		return errors.New("empty file name")
	}
	if err := CheckName(f.Name); err != nil {
		return err
	}
	if f.IsChunked != (f.Chunks != nil) {
		return fmt.Errorf("%s: isChunked=%t but splitDetails present=%t", f.Name, f.IsChunked, f.Chunks != nil)
	}
	if f.Chunks == nil {
		return nil
	}
	if f.Chunks.OriginalSizeBytes != f.SizeBytes {
		return fmt.Errorf("%s: original size %d differs from file size %d", f.Name, f.Chunks.OriginalSizeBytes, f.SizeBytes)
	}
	if f.Chunks.OriginalHash != f.Hash {
		return fmt.Errorf("%s: original hash differs from file hash", f.Name)
	}
	if err := f.Chunks.Validate(); err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	return nil
}

// Validate checks that chunk names are plain file names, that the chunk
// count matches, that indexes are exactly 1..N, and that chunk sizes sum
// to the original size.
func (cs *ChunkSet) Validate() error {
	if int(cs.ChunkCount) != len(cs.Chunks) {
		return fmt.Errorf("chunkCount %d but %d chunks listed", cs.ChunkCount, len(cs.Chunks))
	}
	seen := make(map[uint32]bool, len(cs.Chunks))
	for _, c := range cs.Chunks {
		if err := CheckName(c.Name); err != nil {
			return fmt.Errorf("chunk %d: %w", c.Index, err)
		}
		if c.Index < 1 || int(c.Index) > len(cs.Chunks) {
			return fmt.Errorf("chunk %q index %d out of range 1..%d", c.Name, c.Index, len(cs.Chunks))
		}
		if seen[c.Index] {
			return fmt.Errorf("duplicate chunk index %d", c.Index)
		}
		seen[c.Index] = true
	}
	if total := cs.TotalChunkBytes(); total != cs.OriginalSizeBytes {
		return fmt.Errorf("chunk sizes sum to %d, original size is %d", total, cs.OriginalSizeBytes)
	}
	return nil
}

// NeedsUpdate reports whether remote differs from local by build time.
// A missing local manifest always needs an update.
func NeedsUpdate(local, remote *Manifest) bool {
	if remote == nil {
		return false
	}
	if local == nil {
		return true
	}
	return local.CreatedAt != remote.CreatedAt
}
