package chunk

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected write failure")

// failingFs fails writes to files whose name ends in suffix once limit
// bytes have been written to that file.
type failingFs struct {
	afero.Fs
	suffix string
	limit  int64
}

func (f *failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil || !strings.HasSuffix(name, f.suffix) {
		return file, err
	}
	return &failingFile{File: file, remaining: f.limit}, nil
}

type failingFile struct {
	afero.File
	remaining int64
}

func (f *failingFile) Write(p []byte) (int, error) {
	if int64(len(p)) > f.remaining {
		n, _ := f.File.Write(p[:f.remaining])
		f.remaining = 0
		return n, errInjected
	}
	f.remaining -= int64(len(p))
	return f.File.Write(p)
}

func randomBytes(n int, seed int64) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b) //nolint:gosec // test data
	return b
}

func writeSource(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newEngine() *hashing.Engine {
	return hashing.MustNew(hashing.Options{BlockSize: 512})
}

// splitRecord splits data written to a fresh directory and returns the
// manifest record describing it.
func splitRecord(t *testing.T, data []byte, chunkSize uint64) (*manifest.FileRecord, string) {
	t.Helper()
	dir := t.TempDir()
	path := writeSource(t, dir, "mod.jar", data)

	c, err := NewChunker(newEngine(), ChunkerOptions{ChunkSize: chunkSize, OutputDir: filepath.Join(dir, "chunks")})
	require.NoError(t, err)

	cs, err := c.Split(t.Context(), path)
	require.NoError(t, err)

	return &manifest.FileRecord{
		Path:      path,
		Name:      "mod.jar",
		SizeBytes: cs.OriginalSizeBytes,
		Hash:      cs.OriginalHash,
		IsChunked: true,
		Chunks:    cs,
	}, dir
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
