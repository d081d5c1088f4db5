// Package drift compares a manifest with the current contents of a mods
// directory. Records are matched by content hash first, so a renamed but
// identical file is consistent; only records with no hash match fall back
// to matching by file name.
package drift

import (
	"context"
	"fmt"
	"strings"

	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/scanner"
	"github.com/jamesainslie/modsync/pkg/modsync/types"
	"github.com/samber/lo"
)

// Options configures a Detector.
type Options struct {
	// Exclude contains glob patterns for local paths to ignore.
	Exclude []string

	// OnProgress is called after each local file is hashed.
	OnProgress types.ProgressFunc
}

// Detector finds drift between manifests and directories.
type Detector struct {
	engine *hashing.Engine
	opts   Options
	log    *logging.Logger
}

// New creates a Detector. The engine's algorithm is replaced by each
// manifest's own algorithm during Diff.
func New(engine *hashing.Engine, opts Options) *Detector {
	return &Detector{engine: engine, opts: opts, log: logging.Get("drift")}
}

type localFile struct {
	path string
	name string
	size uint64
	hash string
}

type localIndex struct {
	byHash     map[string][]localFile
	byName     map[string][]localFile
	unreadable map[string]bool
	files      []localFile
}

// Diff classifies every record of m against localDir and lists local
// files the manifest does not know about.
func (d *Detector) Diff(ctx context.Context, m *manifest.Manifest, localDir string) (*Report, error) {
	engine, err := d.engine.WithAlgorithm(m.Algorithm())
	if err != nil {
		return nil, err
	}

	scan, err := scanner.Scan(ctx, scanner.Options{
		Root:          localDir,
		Extensions:    m.TrackedExtensions,
		Exclude:       d.opts.Exclude,
		SkipFragments: true,
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", localDir, err)
	}

	report := &Report{
		ManifestID:      m.ID,
		CreatedAt:       m.CreatedAt,
		LocalDir:        scan.Root,
		Records:         len(m.Files),
		Inconsistencies: []Inconsistency{},
	}

	idx, err := d.index(ctx, engine, scan, report)
	if err != nil {
		return nil, err
	}
	report.LocalFiles = len(idx.files) + len(idx.unreadable)

	for i := range m.Files {
		inc, matched := classify(&m.Files[i], idx)
		switch {
		case matched:
			report.Matched++
		case inc.Kind != "":
			report.Inconsistencies = append(report.Inconsistencies, inc)
		}
	}

	hashes := lo.SliceToMap(m.Files, func(f manifest.FileRecord) (string, struct{}) {
		return strings.ToLower(f.Hash), struct{}{}
	})
	names := lo.SliceToMap(m.Files, func(f manifest.FileRecord) (string, struct{}) {
		return f.Name, struct{}{}
	})
	for _, lf := range idx.files {
		_, knownHash := hashes[lf.hash]
		_, knownName := names[lf.name]
		if knownHash || knownName {
			continue
		}
		report.Inconsistencies = append(report.Inconsistencies, Inconsistency{
			Kind:       KindExtra,
			Name:       lf.name,
			Path:       lf.path,
			ActualSize: lf.size,
			ActualHash: lf.hash,
			Message:    "not in manifest",
		})
	}

	counts := report.Counts()
	d.log.Info("drift check complete", "dir", scan.Root, "records", report.Records, "matched", report.Matched,
		"missing", counts[KindMissing], "size_mismatch", counts[KindSizeMismatch],
		"hash_mismatch", counts[KindHashMismatch], "unreadable", counts[KindUnreadable], "extra", counts[KindExtra])
	return report, nil
}

// index hashes every local candidate. Files that cannot be hashed are
// reported as unreadable and kept out of the lookup maps.
func (d *Detector) index(ctx context.Context, engine *hashing.Engine, scan *scanner.Result, report *Report) (*localIndex, error) {
	idx := &localIndex{
		byHash:     make(map[string][]localFile),
		byName:     make(map[string][]localFile),
		unreadable: make(map[string]bool),
	}

	for _, se := range scan.Errors {
		d.log.Warn("cannot read local path", "path", se.Path, "error", se.Err)
	}

	for i, f := range scan.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fp, err := engine.Fingerprint(f.Path)
		if err != nil {
			d.log.Warn("cannot hash local file", "path", f.Path, "error", err)
			idx.unreadable[f.Name] = true
			report.Inconsistencies = append(report.Inconsistencies, Inconsistency{
				Kind:    KindUnreadable,
				Name:    f.Name,
				Path:    f.Path,
				Err:     err,
				Message: err.Error(),
			})
			continue
		}

		lf := localFile{path: f.Path, name: f.Name, size: fp.Size, hash: strings.ToLower(fp.Hash)}
		idx.files = append(idx.files, lf)
		idx.byHash[lf.hash] = append(idx.byHash[lf.hash], lf)
		idx.byName[lf.name] = append(idx.byName[lf.name], lf)

		d.opts.OnProgress.Emit(types.Progress{
			Stage:   types.StageHash,
			Path:    f.Path,
			Current: i + 1,
			Total:   len(scan.Files),
			Bytes:   fp.Size,
		})
	}
	return idx, nil
}

// classify reports whether rec is consistent, or returns its inconsistency.
// A record whose only local candidate was unreadable yields neither.
func classify(rec *manifest.FileRecord, idx *localIndex) (Inconsistency, bool) {
	want := strings.ToLower(rec.Hash)
	if _, ok := idx.byHash[want]; ok {
		return Inconsistency{}, true
	}

	if candidates, ok := idx.byName[rec.Name]; ok {
		lf := candidates[0]
		base := Inconsistency{
			Name:         rec.Name,
			Path:         lf.path,
			ExpectedSize: rec.SizeBytes,
			ActualSize:   lf.size,
			ExpectedHash: rec.Hash,
			ActualHash:   lf.hash,
		}
		switch {
		case lf.size != rec.SizeBytes:
			base.Kind = KindSizeMismatch
			base.Message = fmt.Sprintf("size %s, expected %s", types.FormatSize(lf.size), types.FormatSize(rec.SizeBytes))
			return base, false
		case lf.hash != want:
			base.Kind = KindHashMismatch
			base.Message = fmt.Sprintf("hash %s, expected %s", types.ShortHash(lf.hash), types.ShortHash(rec.Hash))
			return base, false
		default:
			return Inconsistency{}, true
		}
	}

	// Already reported as unreadable.
	if idx.unreadable[rec.Name] {
		return Inconsistency{}, false
	}

	return Inconsistency{
		Kind:         KindMissing,
		Name:         rec.Name,
		ExpectedSize: rec.SizeBytes,
		ExpectedHash: rec.Hash,
		IsChunked:    rec.IsChunked,
		Chunks:       rec.Chunks,
		Message:      "not found locally",
	}, false
}
