package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobgenie/internal/api/middleware"
)

func TestRouter_HealthAndCORS(t *testing.T) {
	r := NewRouter([]string{"https://app.jobgenie.io"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://app.jobgenie.io")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://app.jobgenie.io", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

type stubClearer struct {
	n   int
	err error
}

func (s stubClearer) Clear(context.Context) (int, error) { return s.n, s.err }

func TestInternal_ClearResourceCache(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRouter(nil, logger)
	h := NewInternalHandler(stubClearer{n: 4}, logger)
	r.DELETE("/internal/resources/cache", middleware.InternalSecretMiddleware("s3cret"), h.ClearResourceCache)

	w := doJSON(t, r, http.MethodDelete, "/internal/resources/cache", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/internal/resources/cache", nil, "X-Internal-Secret", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":4}`, w.Body.String())

	failing := NewRouter(nil, logger)
	failing.DELETE("/internal/resources/cache", NewInternalHandler(stubClearer{n: 1, err: errors.New("redis down")}, logger).ClearResourceCache)
	w = doJSON(t, failing, http.MethodDelete, "/internal/resources/cache", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
