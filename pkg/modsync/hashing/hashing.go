// Package hashing streams file contents through a content digest and
// measures exact byte sizes. It is the single place where modsync computes
// fingerprints; the chunker, verifier, reassembler, manifest builder and
// drift detector all go through an Engine.
package hashing

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/spf13/afero"
)

// DefaultBlockSize is the read block used when streaming files.
const DefaultBlockSize = 64 * 1024

// ErrIO marks a source that could not be opened, stat'ed or read.
var ErrIO = errors.New("unreadable file")

// Fingerprint is the size and digest of one file.
type Fingerprint struct {
	Size uint64
	Hash string
}

// DigestCache remembers digests of unchanged files between runs.
// Implementations must treat any size or mtime change as a miss.
type DigestCache interface {
	Lookup(path string, algo Algorithm, size int64, mtime time.Time) (string, bool)
	Store(path string, algo Algorithm, size int64, mtime time.Time, digest string) error
}

// Options configures an Engine.
type Options struct {
	// Algorithm is the digest to compute. Empty selects DefaultAlgorithm.
	Algorithm Algorithm

	// BlockSize is the streaming read size. Zero selects DefaultBlockSize.
	BlockSize int

	// Fs is the filesystem files are read from. Nil selects the OS filesystem.
	Fs afero.Fs

	// Cache is consulted before hashing whole files. Nil disables caching.
	Cache DigestCache
}

// Engine computes digests and sizes of files.
type Engine struct {
	algo      Algorithm
	blockSize int
	fs        afero.Fs
	cache     DigestCache
	log       *logging.Logger
}

// New creates an Engine. It fails only for an unknown algorithm.
func New(opts Options) (*Engine, error) {
	algo := opts.Algorithm
	if algo == "" {
		algo = DefaultAlgorithm
	}
	if _, err := algo.New(); err != nil {
		return nil, err
	}

	e := &Engine{
		algo:      algo,
		blockSize: opts.BlockSize,
		fs:        opts.Fs,
		cache:     opts.Cache,
		log:       logging.Get("hashing"),
	}
	if e.blockSize <= 0 {
		e.blockSize = DefaultBlockSize
	}
	if e.fs == nil {
		e.fs = afero.NewOsFs()
	}
	return e, nil
}

// MustNew is like New but panics on error. Intended for tests and defaults.
func MustNew(opts Options) *Engine {
	e, err := New(opts)
	if err != nil {
		panic(err)
	}
	return e
}

// Uncached returns an engine sharing this engine's settings but never
// consulting the digest cache. Integrity checks must always re-read bytes.
func (e *Engine) Uncached() *Engine {
	if e.cache == nil {
		return e
	}
	cp := *e
	cp.cache = nil
	return &cp
}

// WithAlgorithm returns an engine sharing this engine's settings but
// computing algo. Cached digests are per algorithm, so the cache is kept.
func (e *Engine) WithAlgorithm(algo Algorithm) (*Engine, error) {
	if algo == e.algo {
		return e, nil
	}
	if _, err := algo.New(); err != nil {
		return nil, err
	}
	cp := *e
	cp.algo = algo
	return &cp, nil
}

// Algorithm returns the digest algorithm in use.
func (e *Engine) Algorithm() Algorithm {
	return e.algo
}

// Fs returns the filesystem the engine reads from.
func (e *Engine) Fs() afero.Fs {
	return e.fs
}

// HashReader streams r through the digest and returns the hex digest and
// the number of bytes consumed.
func (e *Engine) HashReader(r io.Reader) (string, uint64, error) {
	h, err := e.algo.New()
	if err != nil {
		return "", 0, err
	}

	buf := make([]byte, e.blockSize)
	n, err := io.CopyBuffer(h, r, buf)
	if err != nil {
		return "", uint64(n), fmt.Errorf("%w: %w", ErrIO, err)
	}
	return hex.EncodeToString(h.Sum(nil)), uint64(n), nil
}

// HashFile returns the hex digest of the file at path.
func (e *Engine) HashFile(path string) (string, error) {
	fp, err := e.Fingerprint(path)
	if err != nil {
		return "", err
	}
	return fp.Hash, nil
}

// SizeOf returns the exact byte size of the file at path.
func (e *Engine) SizeOf(path string) (uint64, error) {
	info, err := e.fs.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", ErrIO, path)
	}
	return uint64(info.Size()), nil
}

// Fingerprint returns size and digest of the file at path in a single read.
// The size is the number of bytes actually hashed, never the stat size.
func (e *Engine) Fingerprint(path string) (Fingerprint, error) {
	info, err := e.fs.Stat(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	if info.IsDir() {
		return Fingerprint{}, fmt.Errorf("%w: %s is a directory", ErrIO, path)
	}

	if e.cache != nil {
		if digest, ok := e.cache.Lookup(path, e.algo, info.Size(), info.ModTime()); ok {
			return Fingerprint{Size: uint64(info.Size()), Hash: digest}, nil
		}
	}

	f, err := e.fs.Open(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	digest, n, err := e.HashReader(f)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	if e.cache != nil && int64(n) == info.Size() {
		if err := e.cache.Store(path, e.algo, info.Size(), info.ModTime(), digest); err != nil {
			e.log.Debug("digest cache store failed", "path", path, "error", err)
		}
	}

	return Fingerprint{Size: n, Hash: digest}, nil
}

// TryFingerprint is Fingerprint for callers that keep scanning after a
// failure: the error is logged and ok is false.
func (e *Engine) TryFingerprint(path string) (Fingerprint, bool) {
	fp, err := e.Fingerprint(path)
	if err != nil {
		e.log.Warn("cannot fingerprint file", "path", path, "error", err)
		return Fingerprint{}, false
	}
	return fp, true
}

// Exists reports whether a regular file exists at path.
func (e *Engine) Exists(path string) (bool, error) {
	info, err := e.fs.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %s: %w", ErrIO, path, err)
}
