package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_ReadWriteDelete(t *testing.T) {
	ctx := context.Background()
	base := filepath.Join(t.TempDir(), "data")
	s, err := NewLocalStorage(base)
	require.NoError(t, err)

	_, err = os.Stat(base)
	assert.True(t, errors.Is(err, os.ErrNotExist), "base directory is created lazily")

	require.NoError(t, s.Write(ctx, "projects/a.yaml", []byte("a")))
	require.NoError(t, s.Write(ctx, "projects/b.yaml", []byte("bb")))

	data, err := s.Read(ctx, "projects/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	info, err := s.Stat(ctx, "projects/b.yaml")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Size)

	paths, err := s.List(ctx, "projects")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"projects/a.yaml", "projects/b.yaml"}, paths)

	require.NoError(t, s.Delete(ctx, "projects/a.yaml"))
	ok, err := s.Exists(ctx, "projects/a.yaml")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Read(ctx, "projects/a.yaml")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "projects/a.yaml"), ErrNotFound)
}

func TestLocalStorage_ListMissingDir(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	paths, err := s.List(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestLocalStorage_StaysInsideRoot(t *testing.T) {
	ctx := context.Background()
	parent := t.TempDir()
	s, err := NewLocalStorage(filepath.Join(parent, "root"))
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "../escape.txt", []byte("x")))
	_, err = os.Stat(filepath.Join(parent, "escape.txt"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(filepath.Join(parent, "root", "escape.txt"))
	assert.NoError(t, err)
}
