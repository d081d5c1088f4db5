// Package builder produces a manifest for a mods directory, splitting
// every file above the split threshold into fragments.
package builder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jamesainslie/modsync/pkg/modsync/chunk"
	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/modinfo"
	"github.com/jamesainslie/modsync/pkg/modsync/scanner"
	"github.com/jamesainslie/modsync/pkg/modsync/types"
)

// Options configures a Builder.
type Options struct {
	// SplitThreshold is the size above which a file is split.
	SplitThreshold uint64

	// ChunkSize is the maximum fragment size. Required.
	ChunkSize uint64

	// Extensions are the tracked file extensions. Empty tracks .jar files.
	Extensions []string

	// Exclude contains glob patterns for paths to skip.
	Exclude []string

	// ChunkDir receives fragments. Empty writes them next to each source.
	ChunkDir string

	// ReadModInfo records jar metadata for each tracked file.
	ReadModInfo bool

	// OnProgress receives per-file and per-fragment events.
	OnProgress types.ProgressFunc
}

// ErrFragmentCollision is returned for a file whose fragments would
// overwrite those of an earlier file with the same name in ChunkDir.
var ErrFragmentCollision = errors.New("fragment name collision")

// FileError is a file that was left out of the manifest.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e FileError) Unwrap() error {
	return e.Err
}

// Result is the outcome of a build.
type Result struct {
	Manifest *manifest.Manifest

	// Errors lists files excluded because they could not be hashed or
	// split, plus paths the directory walk could not read.
	Errors []FileError
}

// Builder builds manifests.
type Builder struct {
	engine  *hashing.Engine
	chunker *chunk.Chunker
	opts    Options
	log     *logging.Logger
}

// New creates a Builder.
func New(engine *hashing.Engine, opts Options) (*Builder, error) {
	c, err := chunk.NewChunker(engine, chunk.ChunkerOptions{
		ChunkSize:  opts.ChunkSize,
		OutputDir:  opts.ChunkDir,
		OnProgress: opts.OnProgress,
	})
	if err != nil {
		return nil, err
	}
	return &Builder{engine: engine, chunker: c, opts: opts, log: logging.Get("builder")}, nil
}

// Build scans sourceDir and returns a manifest of every tracked file.
// Files are processed one at a time in path order. A file that fails is
// logged, recorded in Result.Errors, and left out; the build continues.
// Only cancellation or an unusable source directory abort the build.
func (b *Builder) Build(ctx context.Context, sourceDir string) (*Result, error) {
	sc := scanner.New(scanner.Options{
		Root:          sourceDir,
		Extensions:    b.opts.Extensions,
		Exclude:       b.opts.Exclude,
		SkipFragments: true,
	})
	scan, err := sc.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", sourceDir, err)
	}

	m := manifest.New(manifest.Header{
		SourceDirectory:     scan.Root,
		HashAlgorithm:       b.engine.Algorithm(),
		TrackedExtensions:   sc.Extensions(),
		SplitThresholdBytes: b.opts.SplitThreshold,
		ChunkSizeBytes:      b.chunker.ChunkSize(),
	})
	res := &Result{Manifest: m}

	for _, se := range scan.Errors {
		b.log.Warn("cannot read path", "path", se.Path, "error", se.Err)
		res.Errors = append(res.Errors, FileError{Path: se.Path, Err: se.Err})
	}

	b.log.Info("building manifest", "source", scan.Root, "candidates", len(scan.Files),
		"threshold", types.FormatSize(b.opts.SplitThreshold), "chunk_size", types.FormatSize(b.chunker.ChunkSize()))

	seen := make(map[string]string, len(scan.Files))
	split := make(map[string]string)
	for i, f := range scan.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := b.buildRecord(ctx, f.Path, split)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			b.log.Error("file excluded from manifest", "path", f.Path, "error", err)
			res.Errors = append(res.Errors, FileError{Path: f.Path, Err: err})
			continue
		}

		if prev, dup := seen[rec.Name]; dup {
			b.log.Warn("duplicate file name in source tree", "name", rec.Name, "first", prev, "second", f.Path)
		}
		seen[rec.Name] = f.Path

		m.Files = append(m.Files, *rec)
		b.opts.OnProgress.Emit(types.Progress{
			Stage:   types.StageRecord,
			Path:    f.Path,
			Current: i + 1,
			Total:   len(scan.Files),
			Bytes:   rec.SizeBytes,
		})
	}

	b.log.Info("manifest built", "files", len(m.Files), "chunked", m.ChunkedCount(),
		"errors", len(res.Errors), "total", types.FormatSize(m.TotalBytes()))
	return res, nil
}

// BuildAndSave builds a manifest and writes it to path. The manifest is
// written even when no file was tracked.
func (b *Builder) BuildAndSave(ctx context.Context, sourceDir, path string) (*Result, error) {
	res, err := b.Build(ctx, sourceDir)
	if err != nil {
		return nil, err
	}
	if err := manifest.Save(path, res.Manifest); err != nil {
		return res, fmt.Errorf("saving manifest: %w", err)
	}
	b.log.Info("manifest saved", "path", path, "id", res.Manifest.ID)
	return res, nil
}

// buildRecord fingerprints or splits path. split maps the names already
// split into a shared ChunkDir to their source paths.
func (b *Builder) buildRecord(ctx context.Context, path string, split map[string]string) (*manifest.FileRecord, error) {
	size, err := b.engine.SizeOf(path)
	if err != nil {
		return nil, err
	}

	rec := &manifest.FileRecord{
		Path: path,
		Name: filepath.Base(path),
	}

	if size > b.opts.SplitThreshold {
		if prev, ok := split[rec.Name]; ok && b.opts.ChunkDir != "" {
			return nil, fmt.Errorf("%w: %s and %s both split into %s",
				ErrFragmentCollision, prev, path, b.opts.ChunkDir)
		}
		cs, err := b.chunker.Split(ctx, path)
		if err != nil {
			return nil, err
		}
		split[rec.Name] = path
		rec.SizeBytes = cs.OriginalSizeBytes
		rec.Hash = cs.OriginalHash
		rec.IsChunked = true
		rec.Chunks = cs
	} else {
		fp, err := b.engine.Fingerprint(path)
		if err != nil {
			return nil, err
		}
		rec.SizeBytes = fp.Size
		rec.Hash = fp.Hash
	}

	if b.opts.ReadModInfo {
		info, err := modinfo.Read(path)
		if err != nil {
			b.log.Debug("no mod metadata", "path", path, "error", err)
		} else {
			rec.Mod = info
		}
	}

	b.opts.OnProgress.Emit(types.Progress{
		Stage: types.StageHash,
		Path:  path,
		Bytes: rec.SizeBytes,
	})
	return rec, nil
}
