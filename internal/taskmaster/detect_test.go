package taskmaster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDetectFolder_Missing(t *testing.T) {
	d := DetectFolder(t.TempDir())
	assert.False(t, d.HasTaskmaster)
	assert.False(t, d.Present())
	assert.Equal(t, ".taskmaster directory not found", d.Reason)
}

func TestDetectFolder_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FolderName), "x")

	d := DetectFolder(dir)
	assert.False(t, d.Present())
	assert.Equal(t, ".taskmaster exists but is not a directory", d.Reason)
}

func TestDetectFolder_WithoutTasksFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FolderName, ConfigFile), "{}")

	d := DetectFolder(dir)
	assert.True(t, d.HasTaskmaster)
	assert.False(t, d.HasEssentialFiles)
	assert.False(t, d.Present())
	assert.Equal(t, map[string]bool{TasksFile: false, ConfigFile: true}, d.Files)
	assert.Nil(t, d.Metadata)
}

func TestDetectFolder_WithTasks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, TasksPath(dir), `{"master":{"tasks":[{"id":1,"status":"done"},{"id":2}]},"feat":{"tasks":[{"id":1}]}}`)

	d := DetectFolder(dir)
	require.True(t, d.Present())
	assert.False(t, d.Files[ConfigFile])
	require.NotNil(t, d.Metadata)
	assert.Equal(t, 3, d.Metadata.TaskCount)
	assert.Equal(t, 1, d.Metadata.Completed)
	assert.Equal(t, 33, d.Metadata.CompletionPercentage)
	assert.NotNil(t, d.Metadata.LastModified)
	assert.Empty(t, d.Metadata.Error)
}

func TestDetectFolder_UnparseableTasks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, TasksPath(dir), `{broken`)

	d := DetectFolder(dir)
	assert.True(t, d.Present())
	require.NotNil(t, d.Metadata)
	assert.Equal(t, "failed to parse tasks.json", d.Metadata.Error)
}

func TestLoadDocument(t *testing.T) {
	dir := t.TempDir()
	doc, err := LoadDocument(dir)
	require.NoError(t, err)
	assert.Empty(t, doc.Tags())

	writeFile(t, TasksPath(dir), `[{"id":1}]`)
	doc, err = LoadDocument(dir)
	require.NoError(t, err)
	assert.IsType(t, FlatList{}, doc)

	writeFile(t, TasksPath(dir), `nope`)
	_, err = LoadDocument(dir)
	assert.ErrorIs(t, err, ErrInvalidJSON)
}
