package restore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/modsync/pkg/modsync/builder"
	"github.com/jamesainslie/modsync/pkg/modsync/chunk"
	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	src    string
	out    string
	chunks string
	m      *manifest.Manifest
	data   map[string][]byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		src:    t.TempDir(),
		out:    t.TempDir(),
		chunks: filepath.Join(t.TempDir(), "chunks"),
		data: map[string][]byte{
			"small.jar": bytes.Repeat([]byte("s"), 200),
			"big.jar":   bytes.Repeat([]byte("0123456789"), 250),
		},
	}
	for name, data := range f.data {
		require.NoError(t, os.WriteFile(filepath.Join(f.src, name), data, 0o644))
	}

	b, err := builder.New(hashing.MustNew(hashing.Options{}), builder.Options{
		SplitThreshold: 1000,
		ChunkSize:      1000,
		ChunkDir:       f.chunks,
	})
	require.NoError(t, err)
	res, err := b.Build(context.Background(), f.src)
	require.NoError(t, err)
	f.m = res.Manifest
	return f
}

func (f *fixture) restorer(t *testing.T, opts Options) *Restorer {
	t.Helper()
	if opts.OutputDir == "" {
		opts.OutputDir = f.out
	}
	r, err := New(hashing.MustNew(hashing.Options{}), opts)
	require.NoError(t, err)
	return r
}

func TestRun_RestoresAndValidates(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.out, "small.jar"), f.data["small.jar"], 0o644))

	var restoreEvents int
	r := f.restorer(t, Options{OnProgress: func(p types.Progress) {
		if p.Stage == types.StageRestore {
			restoreEvents++
		}
	}})

	sum, err := r.Run(context.Background(), f.m)
	require.NoError(t, err)
	require.NoError(t, sum.Err())

	assert.True(t, sum.OK())
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Chunked)
	assert.Equal(t, 1, sum.Unchunked)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 2, restoreEvents)

	got, err := os.ReadFile(filepath.Join(f.out, "big.jar"))
	require.NoError(t, err)
	assert.Equal(t, f.data["big.jar"], got)
	assert.NoFileExists(t, filepath.Join(f.out, "big.jar"+".lock"))
}

func TestRun_SecondRunSkipsPresentFiles(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.out, "small.jar"), f.data["small.jar"], 0o644))
	r := f.restorer(t, Options{})

	_, err := r.Run(context.Background(), f.m)
	require.NoError(t, err)

	sum, err := r.Run(context.Background(), f.m)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, StatusPresent, sum.Outcomes[0].Status)
}

func TestRun_ReportsFailuresAndContinues(t *testing.T) {
	f := newFixture(t)
	big, _ := f.m.File("big.jar")
	require.NoError(t, os.Remove(big.Chunks.Chunks[1].Path))

	sum, err := f.restorer(t, Options{}).Run(context.Background(), f.m)
	require.NoError(t, err)

	assert.False(t, sum.OK())
	assert.Equal(t, 2, sum.Failed)
	assert.ErrorIs(t, sum.Err(), chunk.ErrMissingChunk)
	assert.ErrorIs(t, sum.Err(), ErrFileMissing)
	assert.NoFileExists(t, filepath.Join(f.out, "big.jar"))
}

func TestRun_DetectsCorruptExistingOutput(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.out, "big.jar"), []byte("stale"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.out, "small.jar"), bytes.Repeat([]byte("t"), 200), 0o644))

	sum, err := f.restorer(t, Options{}).Run(context.Background(), f.m)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Failed)
	assert.ErrorIs(t, sum.Err(), ErrFileMismatch)
}

func TestRun_ChunkDirRelocation(t *testing.T) {
	f := newFixture(t)
	moved := filepath.Join(t.TempDir(), "moved")
	require.NoError(t, os.Rename(f.chunks, moved))

	sum, err := f.restorer(t, Options{ChunkDir: moved}).Run(context.Background(), f.m)
	require.NoError(t, err)
	assert.Equal(t, StatusRestored, outcome(sum, "big.jar").Status)
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := f.restorer(t, Options{}).Run(ctx, f.m)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sum.Total)
}

func TestNew_RequiresOutputDir(t *testing.T) {
	_, err := New(hashing.MustNew(hashing.Options{}), Options{})
	assert.Error(t, err)
}

func outcome(sum *Summary, name string) Outcome {
	for _, o := range sum.Outcomes {
		if o.Name == name {
			return o
		}
	}
	return Outcome{}
}
