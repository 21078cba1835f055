package taskmaster

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/tmdash/pkg/cerr"
)

func TestValidPRDName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "prd.txt", want: true},
		{name: "My PRD v1.2.md", want: true},
		{name: "under_score-dash.md", want: true},
		{name: "prd.pdf", want: false},
		{name: "../prd.txt", want: false},
		{name: "dir/prd.txt", want: false},
		{name: ".txt", want: false},
		{name: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidPRDName(tt.name))
		})
	}
}

func TestPRDStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	project := t.TempDir()
	store, err := NewPRDStore(project)
	require.NoError(t, err)

	// Opening the store does not create the docs directory.
	_, err = os.Stat(DocsPath(project))
	assert.True(t, os.IsNotExist(err))

	files, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	res, err := store.Write(ctx, "prd.txt", "line one\nline two\n")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Empty(t, res.Diff)
	assert.Equal(t, filepath.Join(DocsPath(project), "prd.txt"), res.Path)

	res, err = store.Write(ctx, "prd.txt", "line one\nline 2\n")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Contains(t, res.Diff, "--- a/prd.txt")
	assert.Contains(t, res.Diff, "-line two")
	assert.Contains(t, res.Diff, "+line 2")

	doc, err := store.Read(ctx, "prd.txt")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline 2\n", doc.Content)
	assert.Equal(t, int64(len(doc.Content)), doc.Size)

	writeFile(t, filepath.Join(DocsPath(project), "notes.pdf"), "ignored")
	files, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "prd.txt", files[0].Name)

	require.NoError(t, store.Delete(ctx, "prd.txt"))
	_, err = store.Read(ctx, "prd.txt")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	assert.True(t, cerr.IsCode(store.Delete(ctx, "prd.txt"), cerr.NotFound))
}

func TestPRDStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	project := t.TempDir()
	store, err := NewPRDStore(project)
	require.NoError(t, err)

	_, err = store.Write(ctx, "old.md", "a")
	require.NoError(t, err)
	_, err = store.Write(ctx, "new.md", "b")
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(DocsPath(project), "old.md"), past, past))

	files, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "new.md", files[0].Name)
	assert.Equal(t, "old.md", files[1].Name)
}

func TestPRDStore_RejectsBadNames(t *testing.T) {
	ctx := context.Background()
	store, err := NewPRDStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Write(ctx, "../escape.txt", "x")
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	_, err = store.Read(ctx, "a.exe")
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.True(t, cerr.IsCode(store.Delete(ctx, "x"), cerr.InvalidArgument))
}

func TestUnifiedDiff_Equal(t *testing.T) {
	diff, err := UnifiedDiff("a.md", "same", "same")
	require.NoError(t, err)
	assert.Empty(t, diff)
}
