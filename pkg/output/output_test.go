package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureOutputPathCreates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	path, err := EnsureOutputPath(dir, "sample.pcm")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "sample.pcm"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.True(t, info.Mode().IsRegular())
	require.Zero(t, info.Size())
}

func TestEnsureOutputPathIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.pcm")
	require.NoError(t, os.WriteFile(path, []byte{1, 2}, 0644))

	for i := 0; i < 3; i++ {
		got, err := EnsureOutputPath(dir, "sample.pcm")
		require.NoError(t, err)
		require.Equal(t, path, got)
	}

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, b)
}

func TestEnsureOutputPathFailures(t *testing.T) {
	dir := t.TempDir()

	_, err := EnsureOutputPath(dir, "")
	require.Error(t, err)

	_, err = EnsureOutputPath(dir, filepath.Join("x", "y.pcm"))
	require.Error(t, err)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "taken"), 0755))
	_, err = EnsureOutputPath(dir, "taken")
	require.Error(t, err)

	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	_, err = EnsureOutputPath(filepath.Join(blocker, "sub"), "sample.pcm")
	require.Error(t, err)
}

func TestSinkWriteBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcm")
	require.NoError(t, os.WriteFile(path, []byte("old content"), 0644))

	sink, err := OpenSink(path, false, true)
	require.NoError(t, err)

	require.NoError(t, sink.WriteBlock([]byte{1, 2, 3, 4}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, b, "a block must reach the file before WriteBlock returns")

	require.NoError(t, sink.WriteBlock([]byte{5, 6}))
	require.Equal(t, uint64(6), sink.BytesWritten())

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	require.Error(t, sink.WriteBlock([]byte{7, 8}))
}

func TestSinkAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcm")
	require.NoError(t, os.WriteFile(path, []byte{9, 9}, 0644))

	sink, err := OpenSink(path, true, false)
	require.NoError(t, err)
	require.NoError(t, sink.WriteBlock([]byte{1, 2}))
	require.NoError(t, sink.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 9, 1, 2}, b)
}
