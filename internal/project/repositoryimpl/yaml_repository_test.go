package repositoryimpl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/tmdash/internal/project"
	"github.com/kazz187/tmdash/pkg/cerr"
	"github.com/kazz187/tmdash/pkg/storage"
)

func newRepo(t *testing.T) *YAMLRepository {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewYAMLRepository(s)
}

func TestYAMLRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	p := &project.Project{ID: "01A", Name: "alpha", Path: "/tmp/alpha", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(ctx, p))

	got, err := repo.Get(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	byName, err := repo.FindByName(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "01A", byName.ID)

	p.DisplayName = "Alpha"
	require.NoError(t, repo.Update(ctx, p))
	got, err = repo.Get(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", got.DisplayName)

	require.NoError(t, repo.Delete(ctx, "01A"))
	_, err = repo.Get(ctx, "01A")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestYAMLRepository_NameUnique(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.Create(ctx, &project.Project{ID: "01A", Name: "alpha"}))
	err := repo.Create(ctx, &project.Project{ID: "01B", Name: "alpha"})
	assert.True(t, cerr.IsCode(err, cerr.AlreadyExists))

	require.NoError(t, repo.Create(ctx, &project.Project{ID: "01B", Name: "beta"}))
	err = repo.Update(ctx, &project.Project{ID: "01B", Name: "alpha"})
	assert.True(t, cerr.IsCode(err, cerr.AlreadyExists))
}

func TestYAMLRepository_ListSortedAndPaged(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	for id, name := range map[string]string{"01A": "gamma", "01B": "alpha", "01C": "beta"} {
		require.NoError(t, repo.Create(ctx, &project.Project{ID: id, Name: name}))
	}

	all, total, err := repo.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, names)

	page, total, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "beta", page[0].Name)

	page, _, err = repo.List(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestYAMLRepository_EmptyStorage(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.FindByName(context.Background(), "missing")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}
