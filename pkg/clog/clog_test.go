package clog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewAttributesHandler(NewTextHandler(&buf, WithColor(false), WithLevel(slog.LevelInfo))))

	ctx := ContextWithSlog(context.Background())
	AddAttributes(ctx, map[string]any{"method": "GET", "procedure": "/api/projects"})
	AddProject(ctx, "demo")
	AddError(ctx, errors.New("boom"))

	logger.DebugContext(ctx, "hidden")
	logger.InfoContext(ctx, "OK", "status", 200)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "INFO GET /api/projects 200 OK \"boom\"")
	assert.Equal(t, "    project=demo", lines[1])
}

func TestSlogChiMiddleware(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(NewAttributesHandler(NewTextHandler(&buf, WithColor(false)))))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := SlogChiMiddleware(WithChiFilter(HealthCheckFilter))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddProject(r.Context(), "demo")
		w.WriteHeader(http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/x", nil))
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "404 Not Found")
	assert.Contains(t, buf.String(), "project=demo")
}

func TestHTTPStatusToLevel(t *testing.T) {
	assert.Equal(t, LevelInfo, HTTPStatusToLevel(http.StatusOK))
	assert.Equal(t, LevelWarn, HTTPStatusToLevel(http.StatusNotFound))
	assert.Equal(t, LevelError, HTTPStatusToLevel(http.StatusInternalServerError))
}
