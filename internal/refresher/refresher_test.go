package refresher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/tmdash/internal/eventbus"
	"github.com/kazz187/tmdash/internal/project"
	"github.com/kazz187/tmdash/internal/project/repositoryimpl"
	"github.com/kazz187/tmdash/internal/taskmaster"
	"github.com/kazz187/tmdash/pkg/storage"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRefresher_PublishesTransitions(t *testing.T) {
	ctx := context.Background()
	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := repositoryimpl.NewYAMLRepository(st)
	root := t.TempDir()
	require.NoError(t, repo.Create(ctx, &project.Project{ID: "p1", Name: "demo", Path: root}))

	bus := eventbus.New()
	subID, events := bus.Subscribe(8)
	defer bus.Unsubscribe(subID)
	r := New(repo, taskmaster.NewInspector(taskmaster.NewMCPDetector(nil)), bus, "@every 1m")

	n, err := r.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "first run only records")

	writeFile(t, taskmaster.TasksPath(root), `{"tasks":[]}`)
	n, err = r.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	ev := <-events
	assert.Equal(t, eventbus.TypeProjectUpdated, ev.Type)
	assert.Equal(t, "demo", ev.ProjectName)
	assert.Equal(t, string(taskmaster.StatusNotConfigured), ev.Metadata["previous_status"])
	assert.Equal(t, string(taskmaster.StatusTaskmasterOnly), ev.Metadata["status"])

	writeFile(t, filepath.Join(root, ".mcp.json"), `{"mcpServers":{"task-master-ai":{"command":"npx"}}}`)
	n, err = r.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	ev = <-events
	assert.Equal(t, string(taskmaster.StatusFullyConfigured), ev.Metadata["status"])
	ev = <-events
	assert.Equal(t, eventbus.TypeMCPStatusChanged, ev.Type)
	assert.Equal(t, "true", ev.Metadata["configured"])

	n, err = r.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRefresher_InvalidSchedule(t *testing.T) {
	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	r := New(repositoryimpl.NewYAMLRepository(st), taskmaster.NewInspector(taskmaster.NewMCPDetector(nil)), eventbus.New(), "not a schedule")
	err = r.Start(context.Background())
	assert.ErrorContains(t, err, "invalid refresh schedule")
}
