package builder

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/modsync/pkg/modsync/chunk"
	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDenied = errors.New("injected open failure")

// denyFs fails to open files with the given base name.
type denyFs struct {
	afero.Fs
	name string
}

func (d *denyFs) Open(name string) (afero.File, error) {
	if filepath.Base(name) == d.name {
		return nil, errDenied
	}
	return d.Fs.Open(name)
}

func writeFile(t *testing.T, dir, rel string, size int) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*7 + len(rel))
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestBuild_SplitsAboveThreshold(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "small.jar", 100)
	writeFile(t, src, "exact.jar", 1000)
	writeFile(t, src, "big.jar", 2500)
	writeFile(t, src, "notes.txt", 5000)

	var events []types.Progress
	b, err := New(hashing.MustNew(hashing.Options{}), Options{
		SplitThreshold: 1000,
		ChunkSize:      1000,
		OnProgress:     func(p types.Progress) { events = append(events, p) },
	})
	require.NoError(t, err)

	res, err := b.Build(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)

	m := res.Manifest
	require.Len(t, m.Files, 3)
	assert.Equal(t, []string{".jar"}, m.TrackedExtensions)
	assert.Equal(t, hashing.MD5, m.HashAlgorithm)
	assert.Equal(t, uint64(1000), m.SplitThresholdBytes)

	big, ok := m.File("big.jar")
	require.True(t, ok)
	require.True(t, big.IsChunked)
	assert.Equal(t, uint32(3), big.Chunks.ChunkCount)
	assert.Equal(t, big.SizeBytes, big.Chunks.TotalChunkBytes())
	assert.Equal(t, big.Hash, big.Chunks.OriginalHash)

	exact, ok := m.File("exact.jar")
	require.True(t, ok)
	assert.False(t, exact.IsChunked, "a file equal to the threshold is not split")
	assert.Nil(t, exact.Chunks)

	require.NoError(t, m.Validate())

	var records int
	for _, e := range events {
		if e.Stage == types.StageRecord {
			records++
		}
	}
	assert.Equal(t, 3, records)
}

func TestBuild_IgnoresExistingFragments(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "big.jar", 2500)

	b, err := New(hashing.MustNew(hashing.Options{}), Options{SplitThreshold: 1000, ChunkSize: 1000, Extensions: []string{"jar", "part01", "part02", "part03"}})
	require.NoError(t, err)

	_, err = b.Build(context.Background(), src)
	require.NoError(t, err)

	// Second build sees the fragments from the first on disk.
	res, err := b.Build(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, res.Manifest.Files, 1)
	assert.Equal(t, "big.jar", res.Manifest.Files[0].Name)
}

func TestBuild_ExcludesFailingFileAndContinues(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "a.jar", 10)
	writeFile(t, src, "bad.jar", 10)
	writeFile(t, src, "c.jar", 10)

	engine := hashing.MustNew(hashing.Options{Fs: &denyFs{Fs: afero.NewOsFs(), name: "bad.jar"}})
	b, err := New(engine, Options{SplitThreshold: 1000, ChunkSize: 1000})
	require.NoError(t, err)

	res, err := b.Build(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, filepath.Join(src, "bad.jar"), res.Errors[0].Path)
	assert.ErrorIs(t, res.Errors[0], hashing.ErrIO)

	require.Len(t, res.Manifest.Files, 2)
	assert.Equal(t, "a.jar", res.Manifest.Files[0].Name)
	assert.Equal(t, "c.jar", res.Manifest.Files[1].Name)
}

func TestBuild_FailedSplitLeavesNoFragments(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "big.jar", chunk.MaxChunks+1)
	writeFile(t, src, "ok.jar", 10)
	chunks := filepath.Join(t.TempDir(), "chunks")

	b, err := New(hashing.MustNew(hashing.Options{}), Options{SplitThreshold: 1000, ChunkSize: 1, ChunkDir: chunks})
	require.NoError(t, err)

	res, err := b.Build(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], chunk.ErrTooManyChunks)
	require.Len(t, res.Manifest.Files, 1)
	assert.Equal(t, "ok.jar", res.Manifest.Files[0].Name)

	entries, _ := os.ReadDir(chunks)
	assert.Empty(t, entries)
}

func TestBuild_ChunkDir(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "big.jar", 2500)
	chunks := filepath.Join(t.TempDir(), "chunks")

	b, err := New(hashing.MustNew(hashing.Options{}), Options{SplitThreshold: 1000, ChunkSize: 1000, ChunkDir: chunks})
	require.NoError(t, err)

	res, err := b.Build(context.Background(), src)
	require.NoError(t, err)

	for _, c := range res.Manifest.Files[0].Chunks.Chunks {
		assert.Equal(t, chunks, filepath.Dir(c.Path))
		assert.FileExists(t, c.Path)
	}
}

func TestBuild_ChunkDirNameCollision(t *testing.T) {
	src := t.TempDir()
	first := writeFile(t, src, "a/mod.jar", 2500)
	second := writeFile(t, src, "bb/mod.jar", 2500)
	chunks := filepath.Join(t.TempDir(), "chunks")

	engine := hashing.MustNew(hashing.Options{})
	b, err := New(engine, Options{SplitThreshold: 1000, ChunkSize: 1000, ChunkDir: chunks})
	require.NoError(t, err)

	res, err := b.Build(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, second, res.Errors[0].Path)
	assert.ErrorIs(t, res.Errors[0], ErrFragmentCollision)

	require.Len(t, res.Manifest.Files, 1)
	rec := res.Manifest.Files[0]
	assert.Equal(t, first, rec.Path)

	// The recorded fragments still hold the first file's bytes.
	vr := chunk.NewVerifier(engine, chunk.VerifierOptions{ChunkDir: chunks}).Verify(rec.Chunks)
	assert.True(t, vr.OK(), "fragments of %s were overwritten", first)
	entries, err := os.ReadDir(chunks)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestBuild_SameNameWithoutChunkDir(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "a/mod.jar", 2500)
	writeFile(t, src, "bb/mod.jar", 2500)

	b, err := New(hashing.MustNew(hashing.Options{}), Options{SplitThreshold: 1000, ChunkSize: 1000})
	require.NoError(t, err)

	res, err := b.Build(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, res.Errors, "fragments next to each source cannot collide")
	assert.Len(t, res.Manifest.Files, 2)
}

func TestBuildAndSave_EmptyDirectory(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "manifest.json")

	b, err := New(hashing.MustNew(hashing.Options{}), Options{SplitThreshold: 10, ChunkSize: 10})
	require.NoError(t, err)

	res, err := b.BuildAndSave(context.Background(), src, out)
	require.NoError(t, err)
	assert.Empty(t, res.Manifest.Files)

	loaded, err := manifest.Load(out)
	require.NoError(t, err)
	assert.Equal(t, res.Manifest.ID, loaded.ID)
	assert.Empty(t, loaded.Files)
}

func TestBuild_ReadsModInfo(t *testing.T) {
	src := t.TempDir()
	path := filepath.Join(src, "example.jar")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("META-INF/neoforge.mods.toml")
	require.NoError(t, err)
	_, err = w.Write([]byte("[[mods]]\nmodId = \"example\"\nversion = \"2.0\"\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	writeFile(t, src, "plain.jar", 10)

	b, err := New(hashing.MustNew(hashing.Options{}), Options{SplitThreshold: 1 << 20, ChunkSize: 1 << 20, ReadModInfo: true})
	require.NoError(t, err)

	res, err := b.Build(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, res.Manifest.Files, 2)

	rec, _ := res.Manifest.File("example.jar")
	require.NotNil(t, rec.Mod)
	assert.Equal(t, "example", rec.Mod.ModID)
	assert.Equal(t, "2.0", rec.Mod.Version)

	plain, _ := res.Manifest.File("plain.jar")
	assert.Nil(t, plain.Mod)
}

func TestBuild_Errors(t *testing.T) {
	_, err := New(hashing.MustNew(hashing.Options{}), Options{})
	assert.ErrorIs(t, err, chunk.ErrInvalidChunkSize)

	b, err := New(hashing.MustNew(hashing.Options{}), Options{ChunkSize: 10})
	require.NoError(t, err)

	_, err = b.Build(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	src := t.TempDir()
	writeFile(t, src, "a.jar", 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Build(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
}
