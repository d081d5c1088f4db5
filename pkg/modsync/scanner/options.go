// Package scanner enumerates candidate mod files under a directory using
// parallel fastwalk workers. It only lists paths; hashing and splitting
// of the results happen sequentially in the caller.
package scanner

import (
	"strings"

	"github.com/samber/lo"
)

// DefaultExtensions are tracked when none are configured.
var DefaultExtensions = []string{".jar"}

// Options configures a scan.
type Options struct {
	// Root is the directory to scan.
	Root string

	// Extensions restricts results to these file extensions
	// (case-insensitive, with or without the leading dot).
	// Empty selects DefaultExtensions.
	Extensions []string

	// Exclude contains glob patterns for paths to skip.
	// Patterns are matched against the base name and the full path.
	Exclude []string

	// SkipFragments drops files named like split fragments (*.partNN).
	SkipFragments bool
}

// NormalizeExtensions lowercases extensions, adds the leading dot, and
// removes duplicates. Empty input yields DefaultExtensions.
func NormalizeExtensions(exts []string) []string {
	out := lo.FilterMap(exts, func(e string, _ int) (string, bool) {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			return "", false
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		return e, true
	})
	if len(out) == 0 {
		return append([]string(nil), DefaultExtensions...)
	}
	return lo.Uniq(out)
}
