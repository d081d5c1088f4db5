package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/jamesainslie/modsync/pkg/modsync/chunk"
	"github.com/samber/lo"
)

// File is a candidate found by a scan.
type File struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// ScanError is a path that could not be examined. Scans never abort on one.
type ScanError struct {
	Path string
	Err  error
}

func (e ScanError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e ScanError) Unwrap() error {
	return e.Err
}

// Result holds the outcome of a scan. Files are sorted by path.
type Result struct {
	Root        string
	Files       []File
	Errors      []ScanError
	DirsScanned int64
}

// Scanner walks one directory tree.
type Scanner struct {
	opts Options
	exts []string
	root string

	dirsScanned atomic.Int64

	results   []File
	resultsMu sync.Mutex

	errors   []ScanError
	errorsMu sync.Mutex
}

// New creates a Scanner. Extensions are normalized.
func New(opts Options) *Scanner {
	return &Scanner{opts: opts, exts: NormalizeExtensions(opts.Extensions)}
}

// Scan is a shorthand for New(opts).Scan(ctx).
func Scan(ctx context.Context, opts Options) (*Result, error) {
	return New(opts).Scan(ctx)
}

// Extensions returns the normalized tracked extensions.
func (s *Scanner) Extensions() []string {
	return s.exts
}

// Scan walks the root and returns matching files sorted by path.
// It blocks until complete or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	root, err := validateRoot(s.opts.Root)
	if err != nil {
		return nil, err
	}
	s.root = root

	conf := fastwalk.Config{
		Follow: false, // Don't follow symlinks.
	}

	walkErr := fastwalk.Walk(&conf, root, s.walkCallback(ctx.Done()))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if walkErr != nil && !errors.Is(walkErr, fastwalk.ErrSkipFiles) {
		return nil, walkErr
	}

	sort.Slice(s.results, func(i, j int) bool { return s.results[i].Path < s.results[j].Path })
	sort.Slice(s.errors, func(i, j int) bool { return s.errors[i].Path < s.errors[j].Path })

	return &Result{
		Root:        root,
		Files:       s.results,
		Errors:      s.errors,
		DirsScanned: s.dirsScanned.Load(),
	}, nil
}

func (s *Scanner) walkCallback(done <-chan struct{}) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		select {
		case <-done:
			return fastwalk.ErrSkipFiles
		default:
		}

		if err != nil {
			s.addError(path, err)
			return nil
		}

		if path != s.root && s.isExcluded(path) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			s.dirsScanned.Add(1)
			return nil
		}

		if d.Type().IsRegular() && s.matches(d.Name()) {
			s.processFile(path, d)
		}
		return nil
	}
}

func (s *Scanner) matches(name string) bool {
	if s.opts.SkipFragments && chunk.IsFragmentName(name) {
		return false
	}
	return lo.Contains(s.exts, strings.ToLower(filepath.Ext(name)))
}

func (s *Scanner) processFile(path string, d fs.DirEntry) {
	info, err := d.Info()
	if err != nil {
		s.addError(path, err)
		return
	}

	s.resultsMu.Lock()
	s.results = append(s.results, File{
		Path:    path,
		Name:    d.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	})
	s.resultsMu.Unlock()
}

func (s *Scanner) addError(path string, err error) {
	s.errorsMu.Lock()
	s.errors = append(s.errors, ScanError{Path: path, Err: err})
	s.errorsMu.Unlock()
}

// isExcluded checks if a path matches any exclusion pattern.
func (s *Scanner) isExcluded(path string) bool {
	for _, pattern := range s.opts.Exclude {
		if matchesExclusionPattern(path, pattern) {
			return true
		}
	}
	return false
}

// matchesExclusionPattern checks a path against one pattern: a directory
// prefix, a glob on the base name, or a glob on the full path.
func matchesExclusionPattern(path, pattern string) bool {
	if pattern == "" {
		return false
	}
	if path == pattern || strings.HasPrefix(path, pattern+string(filepath.Separator)) {
		return true
	}
	if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
		return true
	}
	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}
	return false
}

// validateRoot resolves the root path to absolute and verifies it is a directory.
func validateRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", &fs.PathError{Op: "scan", Path: abs, Err: os.ErrInvalid}
	}
	return abs, nil
}
