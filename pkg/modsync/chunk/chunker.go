// Package chunk splits large files into size-bounded, content-addressed
// fragments and rebuilds them. Fragments are verified before any output
// byte is written, and the rebuilt file is verified against the original
// size and digest before it is made visible.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/types"
)

// ChunkerOptions configures a Chunker.
type ChunkerOptions struct {
	// ChunkSize is the maximum fragment size in bytes. Required.
	ChunkSize uint64

	// OutputDir receives the fragments. Empty writes them next to the source.
	OutputDir string

	// OnProgress is called after each fragment is written.
	OnProgress types.ProgressFunc
}

// Chunker splits files into fragments.
type Chunker struct {
	engine *hashing.Engine
	opts   ChunkerOptions
	log    *logging.Logger
}

// NewChunker creates a Chunker hashing through engine.
func NewChunker(engine *hashing.Engine, opts ChunkerOptions) (*Chunker, error) {
	if opts.ChunkSize == 0 {
		return nil, ErrInvalidChunkSize
	}
	return &Chunker{engine: engine, opts: opts, log: logging.Get("chunk")}, nil
}

// ChunkSize returns the configured fragment size.
func (c *Chunker) ChunkSize() uint64 {
	return c.opts.ChunkSize
}

// Split writes path as consecutive fragments of at most ChunkSize bytes
// and returns their descriptions. The source is left untouched. On any
// failure or cancellation every fragment written so far is removed.
func (c *Chunker) Split(ctx context.Context, path string) (cs *manifest.ChunkSet, err error) {
	fs := c.engine.Fs()

	original, err := c.engine.Fingerprint(path)
	if err != nil {
		return nil, err
	}

	count := chunkCount(original.Size, c.opts.ChunkSize)
	if count > MaxChunks {
		return nil, fmt.Errorf("%w: %s would need %d fragments of %s (max %d)",
			ErrTooManyChunks, path, count, types.FormatSize(c.opts.ChunkSize), MaxChunks)
	}

	outDir := c.opts.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	if err := fs.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating chunk directory %s: %w", outDir, err)
	}

	cs = &manifest.ChunkSet{
		OriginalSizeBytes: original.Size,
		OriginalHash:      original.Hash,
		ChunkCount:        uint32(count),
		ChunkSizeSetting:  c.opts.ChunkSize,
		Chunks:            make([]manifest.ChunkRecord, 0, count),
	}
	if count == 0 {
		return cs, nil
	}

	var written []string
	defer func() {
		if err == nil {
			return
		}
		for _, p := range written {
			if rmErr := fs.Remove(p); rmErr != nil && !os.IsNotExist(rmErr) {
				c.log.Warn("failed to remove partial fragment", "path", p, "error", rmErr)
			}
		}
		cs = nil
	}()

	src, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", hashing.ErrIO, path, err)
	}
	defer src.Close()

	base := filepath.Base(path)
	verifier := c.engine.Uncached()
	remaining := original.Size

	for i := 1; i <= int(count); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		want := min(c.opts.ChunkSize, remaining)
		name := FragmentName(base, i, int(count))
		fragPath := filepath.Join(outDir, name)

		created, err := c.writeFragment(src, fragPath, want)
		if created {
			written = append(written, fragPath)
		}
		if err != nil {
			return nil, fmt.Errorf("splitting %s: %w", path, err)
		}

		fp, err := verifier.Fingerprint(fragPath)
		if err != nil {
			return nil, fmt.Errorf("splitting %s: %w", path, err)
		}
		if fp.Size != want {
			return nil, fmt.Errorf("splitting %s: %w: %s has %d bytes, expected %d",
				path, ErrSizeMismatch, name, fp.Size, want)
		}

		cs.Chunks = append(cs.Chunks, manifest.ChunkRecord{
			Name:      name,
			Path:      fragPath,
			SizeBytes: fp.Size,
			Hash:      fp.Hash,
			Index:     uint32(i),
		})
		remaining -= want

		c.log.Debug("fragment written", "name", name, "size", types.FormatSize(fp.Size), "hash", types.ShortHash(fp.Hash))
		c.opts.OnProgress.Emit(types.Progress{
			Stage:   types.StageSplit,
			Path:    fragPath,
			Current: i,
			Total:   int(count),
			Bytes:   fp.Size,
		})
	}

	c.log.Info("file split", "path", path, "chunks", count, "size", types.FormatSize(original.Size))
	return cs, nil
}

// writeFragment copies exactly n bytes from src into a new file at path.
// created reports whether path was opened for writing, and so must be
// removed if the split fails.
func (c *Chunker) writeFragment(src io.Reader, path string, n uint64) (created bool, err error) {
	dst, err := c.engine.Fs().OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("%w: creating %s: %w", hashing.ErrIO, path, err)
	}

	copied, err := io.CopyN(dst, src, int64(n))
	closeErr := dst.Close()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return true, fmt.Errorf("%w: source ended after %d of %d bytes for %s", ErrSizeMismatch, copied, n, path)
		}
		return true, fmt.Errorf("%w: writing %s: %w", hashing.ErrIO, path, err)
	}
	if closeErr != nil {
		return true, fmt.Errorf("%w: closing %s: %w", hashing.ErrIO, path, closeErr)
	}
	return true, nil
}
