package chunk

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentName(t *testing.T) {
	tests := []struct {
		index, count int
		want         string
	}{
		{1, 1, "big.jar.part01"},
		{3, 3, "big.jar.part03"},
		{42, 99, "big.jar.part42"},
		{5, 100, "big.jar.part005"},
		{100, 100, "big.jar.part100"},
		{7, 1000, "big.jar.part0007"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FragmentName("big.jar", tt.index, tt.count))
			assert.True(t, IsFragmentName(tt.want))
		})
	}

	assert.False(t, IsFragmentName("big.jar"))
	assert.False(t, IsFragmentName("big.jar.part1"))
	assert.False(t, IsFragmentName("part01.jar"))
}

func TestNewChunker_RejectsZeroChunkSize(t *testing.T) {
	_, err := NewChunker(newEngine(), ChunkerOptions{})
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
}

func TestSplitReassemble_RoundTrip(t *testing.T) {
	const chunkSize = 1024
	sizes := []int{0, 1, chunkSize - 1, chunkSize, chunkSize + 1, 3 * chunkSize, 3*chunkSize + 7}

	for _, size := range sizes {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			data := randomBytes(size, int64(size))
			rec, dir := splitRecord(t, data, chunkSize)
			cs := rec.Chunks

			wantCount := (size + chunkSize - 1) / chunkSize
			assert.Equal(t, uint32(wantCount), cs.ChunkCount)
			require.Len(t, cs.Chunks, wantCount)
			assert.Equal(t, uint64(size), cs.TotalChunkBytes(), "chunk sizes must sum to the original size")
			require.NoError(t, cs.Validate())

			for i, c := range cs.Chunks {
				assert.Equal(t, uint32(i+1), c.Index)
				assert.LessOrEqual(t, c.SizeBytes, uint64(chunkSize))
				assert.Equal(t, FragmentName("mod.jar", i+1, wantCount), c.Name)
				assert.FileExists(t, c.Path)
			}

			out := filepath.Join(dir, "restored")
			path, err := NewReassembler(newEngine(), ReassemblerOptions{}).Reassemble(t.Context(), rec, out)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(out, "mod.jar"), path)

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(data, got), "reassembled bytes differ from original")
			assert.Equal(t, []string{"mod.jar"}, listDir(t, out))
		})
	}
}

func TestSplit_LeavesSourceUntouched(t *testing.T) {
	data := randomBytes(5000, 1)
	rec, _ := splitRecord(t, data, 1000)

	got, err := os.ReadFile(rec.Path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestSplit_ProgressPerChunk(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "mod.jar", randomBytes(2500, 2))

	var events []types.Progress
	c, err := NewChunker(newEngine(), ChunkerOptions{
		ChunkSize:  1000,
		OnProgress: func(p types.Progress) { events = append(events, p) },
	})
	require.NoError(t, err)

	cs, err := c.Split(t.Context(), path)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, types.StageSplit, events[2].Stage)
	assert.Equal(t, 3, events[2].Current)
	assert.Equal(t, uint64(500), events[2].Bytes)
	assert.Equal(t, filepath.Dir(path), filepath.Dir(cs.Chunks[0].Path), "fragments default to the source directory")
}

func TestSplit_WideNamesForLargeChunkCounts(t *testing.T) {
	data := randomBytes(101, 3)
	rec, dir := splitRecord(t, data, 1)

	require.Len(t, rec.Chunks.Chunks, 101)
	assert.Equal(t, "mod.jar.part001", rec.Chunks.Chunks[0].Name)
	assert.Equal(t, "mod.jar.part101", rec.Chunks.Chunks[100].Name)

	names := map[string]bool{}
	for _, c := range rec.Chunks.Chunks {
		assert.False(t, names[c.Name], "duplicate fragment name %s", c.Name)
		names[c.Name] = true
	}

	path, err := NewReassembler(newEngine(), ReassemblerOptions{}).Reassemble(t.Context(), rec, filepath.Join(dir, "out"))
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestSplit_TooManyChunks(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "mod.jar", make([]byte, MaxChunks+1))

	c, err := NewChunker(newEngine(), ChunkerOptions{ChunkSize: 1})
	require.NoError(t, err)

	_, err = c.Split(t.Context(), path)
	assert.ErrorIs(t, err, ErrTooManyChunks)
	assert.Equal(t, []string{"mod.jar"}, listDir(t, dir))
}

func TestSplit_MissingSource(t *testing.T) {
	c, err := NewChunker(newEngine(), ChunkerOptions{ChunkSize: 10})
	require.NoError(t, err)

	_, err = c.Split(t.Context(), filepath.Join(t.TempDir(), "nope.jar"))
	assert.ErrorIs(t, err, hashing.ErrIO)
}

func TestSplit_WriteFailureRemovesFragments(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "mod.jar", randomBytes(3000, 4))
	chunks := filepath.Join(dir, "chunks")

	engine := hashing.MustNew(hashing.Options{Fs: &failingFs{Fs: afero.NewOsFs(), suffix: ".part02", limit: 100}})
	c, err := NewChunker(engine, ChunkerOptions{ChunkSize: 1000, OutputDir: chunks})
	require.NoError(t, err)

	cs, err := c.Split(t.Context(), path)
	require.ErrorIs(t, err, errInjected)
	assert.Nil(t, cs)
	assert.Empty(t, listDir(t, chunks), "no fragment may survive a failed split")
}

func TestSplit_FailedOpenKeepsForeignFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "mod.jar", randomBytes(3000, 15))
	chunks := filepath.Join(dir, "chunks")

	// A directory where the second fragment belongs cannot be opened for writing.
	blocker := filepath.Join(chunks, "mod.jar.part02")
	require.NoError(t, os.MkdirAll(blocker, 0o755))

	c, err := NewChunker(newEngine(), ChunkerOptions{ChunkSize: 1000, OutputDir: chunks})
	require.NoError(t, err)

	_, err = c.Split(t.Context(), path)
	require.ErrorIs(t, err, hashing.ErrIO)
	assert.DirExists(t, blocker, "split must not remove a path it did not create")
	assert.Equal(t, []string{"mod.jar.part02"}, listDir(t, chunks))
}

func TestSplit_CancellationRemovesFragments(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "mod.jar", randomBytes(3000, 5))
	chunks := filepath.Join(dir, "chunks")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	c, err := NewChunker(newEngine(), ChunkerOptions{
		ChunkSize:  1000,
		OutputDir:  chunks,
		OnProgress: func(types.Progress) { cancel() },
	})
	require.NoError(t, err)

	_, err = c.Split(ctx, path)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, listDir(t, chunks))
}

func TestVerify_AllPass(t *testing.T) {
	rec, _ := splitRecord(t, randomBytes(4096, 6), 1000)

	var checked int
	res := NewVerifier(newEngine(), VerifierOptions{
		OnProgress: func(types.Progress) { checked++ },
	}).Verify(rec.Chunks)

	assert.True(t, res.OK())
	assert.NoError(t, res.Err())
	assert.Equal(t, 5, res.Checked)
	assert.Equal(t, 5, checked)
}

func TestVerify_SingleByteTamperFlagsExactlyOneChunk(t *testing.T) {
	rec, _ := splitRecord(t, randomBytes(4096, 7), 1000)

	target := rec.Chunks.Chunks[2]
	data, err := os.ReadFile(target.Path)
	require.NoError(t, err)
	data[10] ^= 0xFF
	require.NoError(t, os.WriteFile(target.Path, data, 0o644))

	res := NewVerifier(newEngine(), VerifierOptions{}).Verify(rec.Chunks)
	require.False(t, res.OK())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, target.Index, res.Failures[0].Chunk.Index)
	assert.ErrorIs(t, res.Err(), ErrHashMismatch)
	assert.Equal(t, 5, res.Checked, "every chunk is checked even after a failure")
}

func TestVerify_CollectsEveryFailureKind(t *testing.T) {
	rec, _ := splitRecord(t, randomBytes(4096, 8), 1000)
	cs := rec.Chunks.Chunks

	require.NoError(t, os.Remove(cs[0].Path))
	f, err := os.OpenFile(cs[1].Path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	res := NewVerifier(newEngine(), VerifierOptions{}).Verify(rec.Chunks)
	require.Len(t, res.Failures, 2)
	err = res.Err()
	assert.ErrorIs(t, err, ErrMissingChunk)
	assert.ErrorIs(t, err, ErrSizeMismatch)
	assert.NotErrorIs(t, err, ErrHashMismatch)
}

func TestVerify_RelocatedChunkDir(t *testing.T) {
	rec, dir := splitRecord(t, randomBytes(2500, 9), 1000)

	moved := filepath.Join(dir, "moved")
	require.NoError(t, os.MkdirAll(moved, 0o755))
	for _, c := range rec.Chunks.Chunks {
		require.NoError(t, os.Rename(c.Path, filepath.Join(moved, c.Name)))
	}

	assert.False(t, NewVerifier(newEngine(), VerifierOptions{}).Verify(rec.Chunks).OK())
	assert.True(t, NewVerifier(newEngine(), VerifierOptions{ChunkDir: moved}).Verify(rec.Chunks).OK())
}

func TestReassemble_TamperedChunkWritesNothing(t *testing.T) {
	rec, dir := splitRecord(t, randomBytes(4096, 10), 1000)
	require.NoError(t, os.WriteFile(rec.Chunks.Chunks[1].Path, bytes.Repeat([]byte{0}, 1000), 0o644))

	out := filepath.Join(dir, "out")
	_, err := NewReassembler(newEngine(), ReassemblerOptions{}).Reassemble(t.Context(), rec, out)
	require.ErrorIs(t, err, ErrHashMismatch)
	assert.Empty(t, listDir(t, out))
}

func TestReassemble_MissingChunkWritesNothing(t *testing.T) {
	rec, dir := splitRecord(t, randomBytes(4096, 11), 1000)
	require.NoError(t, os.Remove(rec.Chunks.Chunks[4].Path))

	out := filepath.Join(dir, "out")
	_, err := NewReassembler(newEngine(), ReassemblerOptions{}).Reassemble(t.Context(), rec, out)
	require.ErrorIs(t, err, ErrMissingChunk)
	assert.NoFileExists(t, filepath.Join(out, "mod.jar"))
	assert.Empty(t, listDir(t, out))
}

func TestReassemble_OrderMatters(t *testing.T) {
	data := append(bytes.Repeat([]byte{'a'}, 1000), bytes.Repeat([]byte{'b'}, 1000)...)
	rec, dir := splitRecord(t, data, 1000)

	// Swapping indexes keeps every chunk individually valid.
	rec.Chunks.Chunks[0].Index, rec.Chunks.Chunks[1].Index = 2, 1
	require.True(t, NewVerifier(newEngine(), VerifierOptions{}).Verify(rec.Chunks).OK())

	out := filepath.Join(dir, "out")
	_, err := NewReassembler(newEngine(), ReassemblerOptions{}).Reassemble(t.Context(), rec, out)
	require.ErrorIs(t, err, ErrReassemblyVerification)
	assert.Empty(t, listDir(t, out), "a mismatching output must be removed")
}

func TestReassemble_WriteFailureLeavesNoOutput(t *testing.T) {
	rec, dir := splitRecord(t, randomBytes(4096, 12), 1000)

	engine := hashing.MustNew(hashing.Options{Fs: &failingFs{Fs: afero.NewOsFs(), suffix: tempSuffix, limit: 1500}})
	out := filepath.Join(dir, "out")

	_, err := NewReassembler(engine, ReassemblerOptions{}).Reassemble(t.Context(), rec, out)
	require.ErrorIs(t, err, errInjected)
	assert.Empty(t, listDir(t, out))
}

func TestReassemble_CancellationLeavesNoOutput(t *testing.T) {
	rec, dir := splitRecord(t, randomBytes(4096, 13), 1000)
	out := filepath.Join(dir, "out")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	r := NewReassembler(newEngine(), ReassemblerOptions{OnProgress: func(types.Progress) { cancel() }})
	_, err := r.Reassemble(ctx, rec, out)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, listDir(t, out))
}

func TestReassemble_ExistingOutputIsNoOp(t *testing.T) {
	rec, dir := splitRecord(t, randomBytes(2048, 14), 1000)
	out := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(out, 0o755))
	existing := writeSource(t, out, "mod.jar", []byte("already here"))

	// Without fragments any read attempt would fail.
	for _, c := range rec.Chunks.Chunks {
		require.NoError(t, os.Remove(c.Path))
	}

	r := NewReassembler(newEngine(), ReassemblerOptions{})
	for range 2 {
		path, err := r.Reassemble(t.Context(), rec, out)
		require.ErrorIs(t, err, ErrAlreadyExists)
		assert.Equal(t, existing, path)
	}

	got, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "already here", string(got))
}

func TestReassemble_SecondCallIsNoOp(t *testing.T) {
	data := randomBytes(2500, 16)
	rec, dir := splitRecord(t, data, 1000)
	out := filepath.Join(dir, "out")
	r := NewReassembler(newEngine(), ReassemblerOptions{})

	first, err := r.Reassemble(t.Context(), rec, out)
	require.NoError(t, err)
	info, err := os.Stat(first)
	require.NoError(t, err)

	// The second call must not need the fragments.
	for _, c := range rec.Chunks.Chunks {
		require.NoError(t, os.Remove(c.Path))
	}

	second, err := r.Reassemble(t.Context(), rec, out)
	require.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, first, second)

	again, err := os.Stat(second)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), again.ModTime())

	got, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, []string{"mod.jar"}, listDir(t, out))
}

func TestReassemble_RejectsUnsafeName(t *testing.T) {
	rec, dir := splitRecord(t, randomBytes(1500, 17), 1000)
	rec.Name = "../escaped.jar"
	out := filepath.Join(dir, "out")

	_, err := NewReassembler(newEngine(), ReassemblerOptions{}).Reassemble(t.Context(), rec, out)
	require.ErrorIs(t, err, manifest.ErrUnsafeName)
	assert.NoFileExists(t, filepath.Join(dir, "escaped.jar"))
	assert.Empty(t, listDir(t, out))
}

func TestReassemble_NotChunked(t *testing.T) {
	r := NewReassembler(newEngine(), ReassemblerOptions{})

	_, err := r.Reassemble(t.Context(), &manifest.FileRecord{Name: "small.jar"}, t.TempDir())
	assert.ErrorIs(t, err, ErrNotChunked)

	_, err = r.Reassemble(t.Context(), nil, t.TempDir())
	assert.ErrorIs(t, err, ErrNotChunked)
}
