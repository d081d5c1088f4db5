package chunk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/types"
)

// VerifierOptions configures a Verifier.
type VerifierOptions struct {
	// ChunkDir relocates fragments: when set, each fragment is looked up as
	// ChunkDir/<chunk name> instead of its recorded path.
	ChunkDir string

	// OnProgress is called after each fragment is checked.
	OnProgress types.ProgressFunc
}

// ChunkFailure is one fragment that failed verification.
type ChunkFailure struct {
	Chunk manifest.ChunkRecord
	Path  string
	Err   error
}

func (f ChunkFailure) Error() string {
	return fmt.Sprintf("chunk %d (%s): %v", f.Chunk.Index, f.Chunk.Name, f.Err)
}

func (f ChunkFailure) Unwrap() error {
	return f.Err
}

// VerifyResult is the outcome of verifying a chunk set.
type VerifyResult struct {
	// Checked is the number of fragments examined.
	Checked int

	// Failures lists every fragment that failed, in index order.
	Failures []ChunkFailure
}

// OK reports whether every fragment passed.
func (r *VerifyResult) OK() bool {
	return len(r.Failures) == 0
}

// Err returns nil when OK, otherwise an error joining every failure, so
// errors.Is matches each failure kind that occurred.
func (r *VerifyResult) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Verifier checks fragments against their recorded size and digest.
type Verifier struct {
	engine *hashing.Engine
	opts   VerifierOptions
	log    *logging.Logger
}

// NewVerifier creates a Verifier. Fragments are always re-read; the
// engine's digest cache is never consulted.
func NewVerifier(engine *hashing.Engine, opts VerifierOptions) *Verifier {
	return &Verifier{engine: engine.Uncached(), opts: opts, log: logging.Get("chunk")}
}

// PathOf returns where the verifier expects the fragment to be.
func (v *Verifier) PathOf(c manifest.ChunkRecord) string {
	if v.opts.ChunkDir != "" {
		return filepath.Join(v.opts.ChunkDir, c.Name)
	}
	if c.Path != "" {
		return c.Path
	}
	return c.Name
}

// Verify checks every fragment of set. Checks on one fragment stop at its
// first failure; all fragments are checked regardless of earlier failures.
func (v *Verifier) Verify(set *manifest.ChunkSet) *VerifyResult {
	res := &VerifyResult{}
	ordered := set.Ordered()

	for i, c := range ordered {
		path := v.PathOf(c)
		res.Checked++

		if err := v.check(path, c); err != nil {
			v.log.Warn("chunk verification failed", "chunk", c.Name, "index", c.Index, "error", err)
			res.Failures = append(res.Failures, ChunkFailure{Chunk: c, Path: path, Err: err})
		}

		v.opts.OnProgress.Emit(types.Progress{
			Stage:   types.StageVerify,
			Path:    path,
			Current: i + 1,
			Total:   len(ordered),
			Bytes:   c.SizeBytes,
		})
	}

	if res.OK() {
		v.log.Debug("chunks verified", "count", res.Checked)
	}
	return res
}

func (v *Verifier) check(path string, c manifest.ChunkRecord) error {
	info, err := v.engine.Fs().Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrMissingChunk, path)
		}
		return fmt.Errorf("%w: %s: %w", hashing.ErrIO, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrMissingChunk, path)
	}

	if uint64(info.Size()) != c.SizeBytes {
		return fmt.Errorf("%w: %s has %d bytes, expected %d", ErrSizeMismatch, path, info.Size(), c.SizeBytes)
	}

	digest, err := v.engine.HashFile(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(digest, c.Hash) {
		return fmt.Errorf("%w: %s: got %s, expected %s",
			ErrHashMismatch, path, types.ShortHash(digest), types.ShortHash(c.Hash))
	}
	return nil
}
