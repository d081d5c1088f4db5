// Package types provides core data types shared across modsync packages:
// progress events reported by long-running operations and helpers for
// parsing and formatting byte sizes.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB uint64 = 1024
	MiB uint64 = 1024 * KiB
	GiB uint64 = 1024 * MiB
	TiB uint64 = 1024 * GiB
)

// Stage identifies which operation emitted a progress event.
type Stage string

const (
	// StageHash is emitted after a whole file has been hashed.
	StageHash Stage = "hash"
	// StageSplit is emitted after each fragment is written.
	StageSplit Stage = "split"
	// StageVerify is emitted after each fragment is checked.
	StageVerify Stage = "verify"
	// StageReassemble is emitted after each fragment is appended to the output.
	StageReassemble Stage = "reassemble"
	// StageRecord is emitted when a file has been added to a manifest.
	StageRecord Stage = "record"
	// StageRestore is emitted when a manifest entry has been restored or validated.
	StageRestore Stage = "restore"
)

// Progress reports a single unit of completed work.
// It is purely observational; no correctness decision depends on it.
type Progress struct {
	// Stage is the operation that produced the event.
	Stage Stage `json:"stage"`

	// Path is the file or fragment that was processed.
	Path string `json:"path"`

	// Current is the 1-based position of this unit within its batch.
	Current int `json:"current"`

	// Total is the number of units in the batch (0 when unknown).
	Total int `json:"total"`

	// Bytes is the size of the unit that was processed.
	Bytes uint64 `json:"bytes"`

	// Message is an optional human-readable status line.
	Message string `json:"message,omitempty"`
}

// ProgressFunc receives progress events. A nil ProgressFunc is valid and ignored.
type ProgressFunc func(Progress)

// Emit calls fn with p when fn is non-nil.
func (fn ProgressFunc) Emit(p Progress) {
	if fn != nil {
		fn(p)
	}
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// Units are binary: "30M", "30MB" and "30MiB" all mean 30*1024*1024.
// Decimal values are truncated to the nearest byte.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier uint64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return uint64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable IEC string ("30 MiB").
func FormatSize(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// ShortHash returns the first eight characters of a digest for log lines.
func ShortHash(digest string) string {
	if len(digest) <= 8 {
		return digest
	}
	return digest[:8]
}
