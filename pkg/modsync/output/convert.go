package output

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/modsync/pkg/modsync/builder"
	"github.com/jamesainslie/modsync/pkg/modsync/chunk"
	"github.com/jamesainslie/modsync/pkg/modsync/drift"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/restore"
)

// Row statuses for manifest listings.
const (
	StatusWhole    = "whole"
	StatusChunked  = "chunked"
	StatusExcluded = "excluded"
	StatusRecorded = "recorded"
)

func row(status, name, path string, size uint64, detail string) Row {
	return Row{
		Status:    status,
		Name:      name,
		Path:      path,
		Size:      size,
		SizeHuman: humanize.IBytes(size),
		Detail:    detail,
	}
}

// FromDrift converts a drift report.
func FromDrift(rep *drift.Report) *Result {
	res := &Result{
		Title:      "Drift",
		Source:     rep.LocalDir,
		ManifestID: rep.ManifestID,
		CreatedAt:  rep.CreatedAt,
		OK:         rep.Clean(),
		Rows:       make([]Row, 0, len(rep.Inconsistencies)),
	}

	for _, inc := range rep.Inconsistencies {
		size := inc.ExpectedSize
		if inc.Kind == drift.KindExtra || inc.Kind == drift.KindUnreadable {
			size = inc.ActualSize
		}
		detail := inc.Message
		if inc.Kind == drift.KindMissing && inc.IsChunked && inc.Chunks != nil {
			detail = fmt.Sprintf("%s (chunked into %d parts)", detail, inc.Chunks.ChunkCount)
		}
		res.Rows = append(res.Rows, row(string(inc.Kind), inc.Name, inc.Path, size, detail))
	}

	counts := rep.Counts()
	res.Stats = []Stat{
		{Label: "Records", Value: rep.Records},
		{Label: "Matched", Value: rep.Matched},
	}
	for _, k := range drift.Kinds {
		res.Stats = append(res.Stats, Stat{Label: kindLabel(k), Value: counts[k]})
	}
	return res
}

func kindLabel(k drift.Kind) string {
	switch k {
	case drift.KindMissing:
		return "Missing"
	case drift.KindSizeMismatch:
		return "Size mismatch"
	case drift.KindHashMismatch:
		return "Hash mismatch"
	case drift.KindUnreadable:
		return "Unreadable"
	case drift.KindExtra:
		return "Extra"
	default:
		return string(k)
	}
}

// FromRestore converts a restore summary.
func FromRestore(sum *restore.Summary, m *manifest.Manifest) *Result {
	res := &Result{
		Title:      "Restore",
		Source:     sum.OutputDir,
		ManifestID: m.ID,
		CreatedAt:  m.CreatedAt,
		OK:         sum.OK(),
		Rows:       make([]Row, 0, len(sum.Outcomes)),
	}

	for _, o := range sum.Outcomes {
		var size uint64
		if rec, ok := m.File(o.Name); ok {
			size = rec.SizeBytes
		}
		res.Rows = append(res.Rows, row(string(o.Status), o.Name, o.Path, size, o.Message))
	}

	res.Stats = []Stat{
		{Label: "Total", Value: sum.Total},
		{Label: "Chunked", Value: sum.Chunked},
		{Label: "Unchunked", Value: sum.Unchunked},
		{Label: "Succeeded", Value: sum.Succeeded},
		{Label: "Skipped", Value: sum.Skipped},
		{Label: "Failed", Value: sum.Failed},
	}
	return res
}

// FromBuild converts a manifest build result.
func FromBuild(b *builder.Result) *Result {
	res := FromManifest(b.Manifest)
	res.Title = "Build"
	res.OK = len(b.Errors) == 0
	for _, e := range b.Errors {
		res.Rows = append(res.Rows, row(StatusExcluded, filepath.Base(e.Path), e.Path, 0, e.Err.Error()))
	}
	res.Stats = append(res.Stats, Stat{Label: "Excluded", Value: len(b.Errors)})
	return res
}

// FromManifest lists the files of a manifest.
func FromManifest(m *manifest.Manifest) *Result {
	res := &Result{
		Title:      "Manifest",
		Source:     m.SourceDirectory,
		ManifestID: m.ID,
		CreatedAt:  m.CreatedAt,
		OK:         true,
		Rows:       make([]Row, 0, len(m.Files)),
	}

	for _, f := range m.Files {
		status, detail := StatusWhole, shortHash(f.Hash)
		if f.IsChunked && f.Chunks != nil {
			status = StatusChunked
			detail = fmt.Sprintf("%s, %d parts", detail, f.Chunks.ChunkCount)
		}
		if f.Mod != nil {
			detail = fmt.Sprintf("%s, %s %s", detail, f.Mod.ModID, f.Mod.Version)
		}
		res.Rows = append(res.Rows, row(status, f.Name, f.Path, f.SizeBytes, detail))
	}

	res.Stats = []Stat{
		{Label: "Files", Value: len(m.Files)},
		{Label: "Chunked", Value: m.ChunkedCount()},
	}
	return res
}

// FromHistory lists recorded manifests, newest first.
func FromHistory(dir string, entries []*manifest.Manifest) *Result {
	res := &Result{Title: "History", Source: dir, OK: true, Rows: make([]Row, 0, len(entries))}
	for _, m := range entries {
		detail := fmt.Sprintf("%s, %s, %d files, %d chunked", m.CreatedAt, m.Algorithm(), len(m.Files), m.ChunkedCount())
		res.Rows = append(res.Rows, row(StatusRecorded, m.ID, m.SourceDirectory, m.TotalBytes(), detail))
	}
	res.Stats = []Stat{{Label: "Builds", Value: len(entries)}}
	return res
}

// FromVerify converts the verification of one chunked file.
func FromVerify(rec *manifest.FileRecord, vr *chunk.VerifyResult) *Result {
	res := &Result{
		Title:  "Verify " + rec.Name,
		Source: rec.Path,
		OK:     vr.OK(),
		Rows:   make([]Row, 0, len(vr.Failures)),
	}
	for _, f := range vr.Failures {
		res.Rows = append(res.Rows, row("failed", f.Chunk.Name, f.Path, f.Chunk.SizeBytes, f.Err.Error()))
	}
	res.Stats = []Stat{
		{Label: "Checked", Value: vr.Checked},
		{Label: "Failed", Value: len(vr.Failures)},
	}
	return res
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
