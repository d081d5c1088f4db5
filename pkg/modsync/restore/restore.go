// Package restore brings an output directory in line with a manifest:
// chunked files are reassembled from their fragments and whole files are
// validated in place.
package restore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/modsync/pkg/modsync/chunk"
	"github.com/jamesainslie/modsync/pkg/modsync/destlock"
	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/types"
)

var (
	// ErrFileMissing indicates an unchunked file is absent from the output directory.
	ErrFileMissing = errors.New("file missing")

	// ErrFileMismatch indicates a file in the output directory differs from its record.
	ErrFileMismatch = errors.New("file does not match manifest")
)

// Status is the outcome of restoring one record.
type Status string

const (
	// StatusRestored means the file was reassembled from fragments.
	StatusRestored Status = "restored"
	// StatusPresent means the reassembly target already existed and matched.
	StatusPresent Status = "present"
	// StatusValid means an unchunked file was found and matched.
	StatusValid Status = "valid"
	// StatusFailed means the record could not be restored or validated.
	StatusFailed Status = "failed"
)

// Outcome is the result for one manifest record.
type Outcome struct {
	Name    string `json:"name" yaml:"name"`
	Path    string `json:"path" yaml:"path"`
	Chunked bool   `json:"chunked" yaml:"chunked"`
	Status  Status `json:"status" yaml:"status"`
	Err     error  `json:"-" yaml:"-"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Summary aggregates a restore run.
type Summary struct {
	OutputDir string    `json:"outputDir" yaml:"output_dir"`
	Total     int       `json:"total" yaml:"total"`
	Chunked   int       `json:"chunked" yaml:"chunked"`
	Unchunked int       `json:"unchunked" yaml:"unchunked"`
	Succeeded int       `json:"succeeded" yaml:"succeeded"`
	Skipped   int       `json:"skipped" yaml:"skipped"`
	Failed    int       `json:"failed" yaml:"failed"`
	Outcomes  []Outcome `json:"outcomes" yaml:"outcomes"`
}

// OK reports whether no record failed.
func (s *Summary) OK() bool {
	return s.Failed == 0
}

// Err joins the errors of every failed record, or returns nil.
func (s *Summary) Err() error {
	var errs []error
	for _, o := range s.Outcomes {
		if o.Status == StatusFailed && o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Name, o.Err))
		}
	}
	return errors.Join(errs...)
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	s.Total++
	if o.Chunked {
		s.Chunked++
	} else {
		s.Unchunked++
	}
	switch o.Status {
	case StatusRestored, StatusValid:
		s.Succeeded++
	case StatusPresent:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}

// Options configures a restore run.
type Options struct {
	// OutputDir is where files are restored and validated. Required.
	OutputDir string

	// ChunkDir relocates fragments. Empty uses the recorded chunk paths.
	ChunkDir string

	// Locker serializes writers per destination. Nil uses a private Locker.
	Locker *destlock.Locker

	// OnProgress receives one StageRestore event per record, plus the
	// reassembler's per-fragment events.
	OnProgress types.ProgressFunc
}

// Restorer runs restores.
type Restorer struct {
	engine *hashing.Engine
	locker *destlock.Locker
	opts   Options
	log    *logging.Logger
}

// run holds the per-manifest state of one Run call.
type run struct {
	*Restorer
	engine      *hashing.Engine
	reassembler *chunk.Reassembler
}

// New creates a Restorer. The engine's algorithm is replaced by each
// manifest's own algorithm during Run.
func New(engine *hashing.Engine, opts Options) (*Restorer, error) {
	if opts.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	locker := opts.Locker
	if locker == nil {
		locker = destlock.New()
	}
	return &Restorer{
		engine: engine.Uncached(),
		locker: locker,
		opts:   opts,
		log:    logging.Get("restore"),
	}, nil
}

// Run restores every record of m. Failures are recorded per record and do
// not stop the run; only cancellation does, in which case the summary so
// far is returned with the context error.
func (r *Restorer) Run(ctx context.Context, m *manifest.Manifest) (*Summary, error) {
	engine, err := r.engine.WithAlgorithm(m.Algorithm())
	if err != nil {
		return nil, err
	}
	job := &run{
		Restorer: r,
		engine:   engine,
		reassembler: chunk.NewReassembler(engine, chunk.ReassemblerOptions{
			ChunkDir:   r.opts.ChunkDir,
			OnProgress: r.opts.OnProgress,
		}),
	}

	sum := &Summary{OutputDir: r.opts.OutputDir, Outcomes: []Outcome{}}

	for i := range m.Files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		rec := &m.Files[i]
		var o Outcome
		if rec.IsChunked {
			o = job.restoreChunked(ctx, rec)
		} else {
			o = job.validate(rec)
		}
		if o.Err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return sum, ctxErr
			}
			o.Message = o.Err.Error()
			r.log.Error("restore failed", "file", rec.Name, "error", o.Err)
		}
		sum.add(o)

		r.opts.OnProgress.Emit(types.Progress{
			Stage:   types.StageRestore,
			Path:    o.Path,
			Current: i + 1,
			Total:   len(m.Files),
			Bytes:   rec.SizeBytes,
			Message: string(o.Status),
		})
	}

	r.log.Info("restore complete", "output", r.opts.OutputDir, "total", sum.Total,
		"succeeded", sum.Succeeded, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

func (r *run) restoreChunked(ctx context.Context, rec *manifest.FileRecord) Outcome {
	dest := filepath.Join(r.opts.OutputDir, rec.Name)
	o := Outcome{Name: rec.Name, Path: dest, Chunked: true}

	lock, err := r.locker.Acquire(ctx, dest)
	if err != nil {
		o.Status, o.Err = StatusFailed, err
		return o
	}
	defer func() {
		if err := lock.Release(); err != nil {
			r.log.Warn("failed to release lock", "path", dest, "error", err)
		}
	}()

	_, err = r.reassembler.Reassemble(ctx, rec, r.opts.OutputDir)
	switch {
	case err == nil:
		o.Status = StatusRestored
	case errors.Is(err, chunk.ErrAlreadyExists):
		if err := r.check(dest, rec); err != nil {
			o.Status, o.Err = StatusFailed, err
		} else {
			o.Status = StatusPresent
		}
	default:
		o.Status, o.Err = StatusFailed, err
	}
	return o
}

func (r *run) validate(rec *manifest.FileRecord) Outcome {
	dest := filepath.Join(r.opts.OutputDir, rec.Name)
	o := Outcome{Name: rec.Name, Path: dest}
	if err := r.check(dest, rec); err != nil {
		o.Status, o.Err = StatusFailed, err
	} else {
		o.Status = StatusValid
	}
	return o
}

// check compares the file at path with rec by size, then by digest.
func (r *run) check(path string, rec *manifest.FileRecord) error {
	exists, err := r.engine.Exists(path)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrFileMissing, path)
	}

	size, err := r.engine.SizeOf(path)
	if err != nil {
		return err
	}
	if size != rec.SizeBytes {
		return fmt.Errorf("%w: %s has %d bytes, expected %d", ErrFileMismatch, path, size, rec.SizeBytes)
	}

	digest, err := r.engine.HashFile(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(digest, rec.Hash) {
		return fmt.Errorf("%w: %s hash %s, expected %s", ErrFileMismatch, path, types.ShortHash(digest), types.ShortHash(rec.Hash))
	}
	return nil
}
