package drift

import (
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/samber/lo"
)

// Kind classifies an inconsistency between a manifest and a directory.
type Kind string

const (
	// KindMissing means no local file matches the record by hash or name.
	KindMissing Kind = "missing"
	// KindSizeMismatch means a same-named local file has a different size.
	KindSizeMismatch Kind = "size_mismatch"
	// KindHashMismatch means a same-named, same-sized local file has different content.
	KindHashMismatch Kind = "hash_mismatch"
	// KindUnreadable means a local file could not be hashed.
	KindUnreadable Kind = "unreadable"
	// KindExtra means a local file matches no record by hash or name.
	KindExtra Kind = "extra"
)

// Kinds lists every kind in report order.
var Kinds = []Kind{KindMissing, KindSizeMismatch, KindHashMismatch, KindUnreadable, KindExtra}

// Inconsistency is one classified difference.
type Inconsistency struct {
	Kind Kind   `json:"kind" yaml:"kind"`
	Name string `json:"name" yaml:"name"`

	// Path is the local file involved, empty for missing records.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	ExpectedSize uint64 `json:"expectedSize,omitempty" yaml:"expected_size,omitempty"`
	ActualSize   uint64 `json:"actualSize,omitempty" yaml:"actual_size,omitempty"`
	ExpectedHash string `json:"expectedHash,omitempty" yaml:"expected_hash,omitempty"`
	ActualHash   string `json:"actualHash,omitempty" yaml:"actual_hash,omitempty"`

	// IsChunked and Chunks carry the record's split layout for missing
	// files, so callers can reassemble instead of downloading.
	IsChunked bool               `json:"isChunked,omitempty" yaml:"is_chunked,omitempty"`
	Chunks    *manifest.ChunkSet `json:"splitDetails,omitempty" yaml:"-"`

	// Err is set for unreadable files.
	Err error `json:"-" yaml:"-"`

	// Message is a human-readable description.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Report is the result of comparing a manifest with a directory.
type Report struct {
	ManifestID string `json:"manifestId,omitempty" yaml:"manifest_id,omitempty"`
	CreatedAt  string `json:"createdAt" yaml:"created_at"`
	LocalDir   string `json:"localDir" yaml:"local_dir"`

	// Records is the number of manifest records checked.
	Records int `json:"records" yaml:"records"`
	// LocalFiles is the number of tracked local files examined.
	LocalFiles int `json:"localFiles" yaml:"local_files"`
	// Matched is the number of records found consistent.
	Matched int `json:"matched" yaml:"matched"`

	Inconsistencies []Inconsistency `json:"inconsistencies" yaml:"inconsistencies"`
}

// Clean reports whether no inconsistency was found.
func (r *Report) Clean() bool {
	return len(r.Inconsistencies) == 0
}

// ByKind returns the inconsistencies of one kind, in report order.
func (r *Report) ByKind(k Kind) []Inconsistency {
	return lo.Filter(r.Inconsistencies, func(i Inconsistency, _ int) bool { return i.Kind == k })
}

// Counts returns the number of inconsistencies per kind.
func (r *Report) Counts() map[Kind]int {
	return lo.CountValuesBy(r.Inconsistencies, func(i Inconsistency) Kind { return i.Kind })
}

// Missing returns missing records, the candidates for restore.
func (r *Report) Missing() []Inconsistency {
	return r.ByKind(KindMissing)
}
