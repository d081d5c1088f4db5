package chunk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/types"
)

// tempSuffix marks an output that is still being written.
const tempSuffix = ".reassembling"

// ReassemblerOptions configures a Reassembler.
type ReassemblerOptions struct {
	// ChunkDir relocates fragments, as in VerifierOptions.
	ChunkDir string

	// OnProgress is called after each fragment is appended.
	OnProgress types.ProgressFunc
}

// Reassembler rebuilds chunked files from verified fragments.
type Reassembler struct {
	engine   *hashing.Engine
	verifier *Verifier
	opts     ReassemblerOptions
	log      *logging.Logger
}

// NewReassembler creates a Reassembler.
func NewReassembler(engine *hashing.Engine, opts ReassemblerOptions) *Reassembler {
	return &Reassembler{
		engine:   engine.Uncached(),
		verifier: NewVerifier(engine, VerifierOptions{ChunkDir: opts.ChunkDir}),
		opts:     opts,
		log:      logging.Get("chunk"),
	}
}

// Reassemble rebuilds rec into outputDir/<rec.Name> and returns the path.
//
// If the output already exists it returns the path and ErrAlreadyExists
// without reading any fragment. Fragments are verified before anything is
// written; the output is only made visible after its size and digest
// match rec. On any failure or cancellation no output is left behind.
func (r *Reassembler) Reassemble(ctx context.Context, rec *manifest.FileRecord, outputDir string) (string, error) {
	if rec == nil || !rec.IsChunked || rec.Chunks == nil {
		name := ""
		if rec != nil {
			name = rec.Name
		}
		return "", fmt.Errorf("%w: %s", ErrNotChunked, name)
	}

	if err := manifest.CheckName(rec.Name); err != nil {
		return "", fmt.Errorf("reassembling: %w", err)
	}

	fs := r.engine.Fs()
	out := filepath.Join(outputDir, rec.Name)

	exists, err := r.engine.Exists(out)
	if err != nil {
		return "", err
	}
	if exists {
		r.log.Info("output already exists, skipping", "path", out)
		return out, ErrAlreadyExists
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if res := r.verifier.Verify(rec.Chunks); !res.OK() {
		return "", fmt.Errorf("reassembling %s: %d of %d chunks failed: %w",
			rec.Name, len(res.Failures), res.Checked, res.Err())
	}

	if err := fs.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating %s: %w", hashing.ErrIO, outputDir, err)
	}

	tmp := out + tempSuffix
	if err := r.concatenate(ctx, rec, tmp); err != nil {
		r.discard(tmp)
		return "", fmt.Errorf("reassembling %s: %w", rec.Name, err)
	}

	fp, err := r.engine.Fingerprint(tmp)
	if err != nil {
		r.discard(tmp)
		return "", fmt.Errorf("reassembling %s: %w", rec.Name, err)
	}
	if fp.Size != rec.SizeBytes || !strings.EqualFold(fp.Hash, rec.Hash) {
		r.discard(tmp)
		return "", fmt.Errorf("%w: %s: got %d bytes %s, expected %d bytes %s",
			ErrReassemblyVerification, rec.Name,
			fp.Size, types.ShortHash(fp.Hash), rec.SizeBytes, types.ShortHash(rec.Hash))
	}

	if err := fs.Rename(tmp, out); err != nil {
		r.discard(tmp)
		return "", fmt.Errorf("%w: renaming %s: %w", hashing.ErrIO, tmp, err)
	}

	r.log.Info("file reassembled", "path", out, "chunks", len(rec.Chunks.Chunks), "size", types.FormatSize(fp.Size))
	return out, nil
}

// concatenate appends every fragment in index order to a new file at dst.
func (r *Reassembler) concatenate(ctx context.Context, rec *manifest.FileRecord, dst string) error {
	f, err := r.engine.Fs().OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", hashing.ErrIO, dst, err)
	}

	ordered := rec.Chunks.Ordered()
	buf := make([]byte, hashing.DefaultBlockSize)
	var total uint64

	for i, c := range ordered {
		if err := ctx.Err(); err != nil {
			_ = f.Close()
			return err
		}

		n, err := r.appendFragment(f, r.verifier.PathOf(c), buf)
		total += n
		if err != nil {
			_ = f.Close()
			return err
		}

		r.opts.OnProgress.Emit(types.Progress{
			Stage:   types.StageReassemble,
			Path:    r.verifier.PathOf(c),
			Current: i + 1,
			Total:   len(ordered),
			Bytes:   n,
		})
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", hashing.ErrIO, dst, err)
	}
	if total != rec.SizeBytes {
		return fmt.Errorf("%w: wrote %d bytes, expected %d", ErrReassemblyVerification, total, rec.SizeBytes)
	}
	return nil
}

func (r *Reassembler) appendFragment(dst io.Writer, path string, buf []byte) (uint64, error) {
	src, err := r.engine.Fs().Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrMissingChunk, path)
		}
		return 0, fmt.Errorf("%w: %s: %w", hashing.ErrIO, path, err)
	}
	defer src.Close()

	n, err := io.CopyBuffer(dst, src, buf)
	if err != nil {
		return uint64(n), fmt.Errorf("%w: appending %s: %w", hashing.ErrIO, path, err)
	}
	return uint64(n), nil
}

func (r *Reassembler) discard(path string) {
	if err := r.engine.Fs().Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.log.Warn("failed to remove partial output", "path", path, "error", err)
	}
}
