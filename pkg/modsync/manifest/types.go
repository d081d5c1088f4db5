// Package manifest defines the persisted description of a mods directory:
// one record per tracked file, with chunk details for files that were split.
// A Manifest is built once per pass, saved, and treated as immutable after.
package manifest

import (
	"sort"
	"time"

	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/samber/lo"
)

// TimeLayout is the format of CreatedAt: UTC with microseconds.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// ModInfo is metadata read from a mod jar, when available.
type ModInfo struct {
	ModID       string `json:"modId"`
	Version     string `json:"version,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// ChunkRecord describes one fragment of a split file.
type ChunkRecord struct {
	Name      string `json:"chunkName"`
	Path      string `json:"chunkPath"`
	SizeBytes uint64 `json:"chunkSizeBytes"`
	Hash      string `json:"chunkHash"`
	Index     uint32 `json:"chunkIndex"` // 1-based
}

// ChunkSet describes how one file was split.
type ChunkSet struct {
	OriginalSizeBytes uint64        `json:"originalFileSizeBytes"`
	OriginalHash      string        `json:"originalFileHash"`
	ChunkCount        uint32        `json:"chunkCount"`
	ChunkSizeSetting  uint64        `json:"chunkSizeSettingBytes"`
	Chunks            []ChunkRecord `json:"chunks"`
}

// Ordered returns a copy of the chunks sorted by ascending Index.
func (cs *ChunkSet) Ordered() []ChunkRecord {
	out := make([]ChunkRecord, len(cs.Chunks))
	copy(out, cs.Chunks)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// TotalChunkBytes is the sum of all chunk sizes.
func (cs *ChunkSet) TotalChunkBytes() uint64 {
	return lo.SumBy(cs.Chunks, func(c ChunkRecord) uint64 { return c.SizeBytes })
}

// FileRecord describes one tracked file. Hash and SizeBytes always describe
// the original, unchunked content.
type FileRecord struct {
	Path      string    `json:"filePath"`
	Name      string    `json:"fileName"`
	SizeBytes uint64    `json:"fileSizeBytes"`
	Hash      string    `json:"fileHash"`
	IsChunked bool      `json:"isChunked"`
	Chunks    *ChunkSet `json:"splitDetails,omitempty"`
	Mod       *ModInfo  `json:"mod,omitempty"`
}

// Manifest is the full description of a mods directory at build time.
type Manifest struct {
	ID                  string            `json:"id,omitempty"`
	CreatedAt           string            `json:"createdAt"`
	HashAlgorithm       hashing.Algorithm `json:"hashAlgorithm,omitempty"`
	TrackedExtensions   []string          `json:"trackedExtensions,omitempty"`
	SplitThresholdBytes uint64            `json:"splitThresholdBytes"`
	ChunkSizeBytes      uint64            `json:"chunkSizeBytes"`
	SourceDirectory     string            `json:"sourceDirectory"`
	Files               []FileRecord      `json:"files"`
}

// Algorithm returns the digest algorithm the manifest was built with.
// Documents without one predate the field and used md5.
func (m *Manifest) Algorithm() hashing.Algorithm {
	if m.HashAlgorithm == "" {
		return hashing.MD5
	}
	return m.HashAlgorithm
}

// Created parses CreatedAt. The zero time is returned if it is malformed.
func (m *Manifest) Created() time.Time {
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, m.CreatedAt); err == nil {
			return t
		}
	}
	return time.Time{}
}

// TotalBytes is the sum of the original sizes of all tracked files.
func (m *Manifest) TotalBytes() uint64 {
	return lo.SumBy(m.Files, func(f FileRecord) uint64 { return f.SizeBytes })
}

// ChunkedCount is the number of files that were split.
func (m *Manifest) ChunkedCount() int {
	return lo.CountBy(m.Files, func(f FileRecord) bool { return f.IsChunked })
}

// File returns the first record with the given file name.
func (m *Manifest) File(name string) (*FileRecord, bool) {
	for i := range m.Files {
		if m.Files[i].Name == name {
			return &m.Files[i], true
		}
	}
	return nil, false
}
