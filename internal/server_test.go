package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/tmdash/internal/config"
	"github.com/kazz187/tmdash/internal/event"
	"github.com/kazz187/tmdash/internal/eventbus"
	"github.com/kazz187/tmdash/internal/project"
	projectrepo "github.com/kazz187/tmdash/internal/project/repositoryimpl"
	"github.com/kazz187/tmdash/internal/pushnotification"
	pushsubrepo "github.com/kazz187/tmdash/internal/pushsubscription/repositoryimpl"
	"github.com/kazz187/tmdash/internal/taskmaster"
	"github.com/kazz187/tmdash/internal/tmcli"
	"github.com/kazz187/tmdash/pkg/storage"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	templates, err := taskmaster.BuiltinTemplates()
	require.NoError(t, err)

	env := &config.Env{BaseEnv: config.BaseEnv{APIKey: "secret"}}
	bus := eventbus.New()
	projectRepo := projectrepo.NewYAMLRepository(store)
	pushSubRepo := pushsubrepo.NewYAMLRepository(store)
	sender := pushnotification.NewSender(&env.PushEnv, pushSubRepo)

	srv := NewServer(
		env,
		project.NewServer(projectRepo, bus),
		taskmaster.NewServer(projectRepo, taskmaster.NewInspector(taskmaster.NewMCPDetector(nil)), tmcli.New(tmcli.NewExecRunner("task-master", 0)), templates, bus),
		event.NewServer(bus),
		pushnotification.NewServer(&env.PushEnv, pushSubRepo, sender),
	)
	return srv.Handler()
}

func TestServer_Authentication(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
		want   int
	}{
		{name: "health is public", method: http.MethodGet, path: "/health", want: http.StatusOK},
		{name: "missing key", method: http.MethodGet, path: "/api/projects", want: http.StatusUnauthorized},
		{name: "wrong key", method: http.MethodGet, path: "/api/projects", header: map[string]string{"X-API-Key": "nope"}, want: http.StatusUnauthorized},
		{name: "api key header", method: http.MethodGet, path: "/api/projects", header: map[string]string{"X-API-Key": "secret"}, want: http.StatusOK},
		{name: "bearer token", method: http.MethodGet, path: "/api/taskmaster/prd-templates", header: map[string]string{"Authorization": "Bearer secret"}, want: http.StatusOK},
		{name: "unknown api route", method: http.MethodGet, path: "/api/nope", header: map[string]string{"X-API-Key": "secret"}, want: http.StatusNotFound},
		{name: "push without vapid keys", method: http.MethodGet, path: "/api/push/vapid-public-key", header: map[string]string{"X-API-Key": "secret"}, want: http.StatusPreconditionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestServer_NotFoundIsJSON(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/taskmaster/detect/missing", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"code":"not_found"`)
}
