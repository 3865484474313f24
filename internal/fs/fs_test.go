package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub")
	lfs := LocalFS{}
	require.NoError(t, lfs.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "a")
	f, err := lfs.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	assert.Equal(t, path, f.Name())
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	renamed := filepath.Join(dir, "b")
	require.NoError(t, lfs.Rename(path, renamed))
	data, err := os.ReadFile(renamed)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, lfs.Remove(renamed))
	_, err = os.Stat(renamed)
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFS(t *testing.T) {
	dir := t.TempDir()
	ffs := NewFaultyFS(nil)
	ffs.AddRule("index", Fault{FailAfterBytes: 4})
	ffs.AddRule("index.sync", Fault{FailAfterBytes: -1, FailOnSync: true})
	ffs.AddRule("final", Fault{FailAfterBytes: -1, FailOnRename: true})

	t.Run("FailAfterBytes", func(t *testing.T) {
		f, err := ffs.OpenFile(filepath.Join(dir, "index"), os.O_CREATE|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		_, err = f.Write([]byte("abc"))
		require.NoError(t, err)
		_, err = f.Write([]byte("de"))
		assert.ErrorIs(t, err, ErrInjected)
		require.NoError(t, f.Close())
	})

	t.Run("LongestPatternWins", func(t *testing.T) {
		f, err := ffs.OpenFile(filepath.Join(dir, "index.sync"), os.O_CREATE|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		_, err = f.Write([]byte("more than four bytes"))
		require.NoError(t, err)
		assert.ErrorIs(t, f.Sync(), ErrInjected)
		require.NoError(t, f.Close())
	})

	t.Run("Rename", func(t *testing.T) {
		assert.ErrorIs(t, ffs.Rename(filepath.Join(dir, "index"), filepath.Join(dir, "final")), ErrInjected)
		assert.NoError(t, ffs.Rename(filepath.Join(dir, "index"), filepath.Join(dir, "other")))
	})

	t.Run("NoRule", func(t *testing.T) {
		f, err := ffs.OpenFile(filepath.Join(dir, "plain"), os.O_CREATE|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		_, isFaulty := f.(*faultyFile)
		assert.False(t, isFaulty)
		require.NoError(t, f.Close())
	})
}
