package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-copilot/internal/config"
	"z-novel-copilot/internal/interfaces/http/handler"
	"z-novel-copilot/internal/interfaces/http/middleware"
)

func newTestRouter() *Router {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.App.Name = "z-novel-copilot"
	cfg.Observability.Metrics.Enabled = true
	cfg.Observability.Metrics.Path = "/metrics"
	return New(cfg, &Handlers{
		Health:    handler.NewHealthHandler(cfg, nil, nil),
		Assistant: handler.NewAssistantHandler(nil, nil, nil, nil),
	})
}

func TestRouter_SystemEndpoints(t *testing.T) {
	r := newTestRouter()

	for _, path := range []string{"/health", "/live", "/ready", "/metrics"} {
		w := httptest.NewRecorder()
		r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Contains(t, w.Body.String(), `"postgres":{"status":"disabled"}`)
}

func TestRouter_RequestIDAndRoutes(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	r.Engine().ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(middleware.RequestIDHeader))

	routes := map[string]bool{}
	for _, ri := range r.Engine().Routes() {
		routes[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{
		"POST /v1/assistant/search",
		"POST /v1/assistant/directives/extract",
		"POST /v1/assistant/sessions",
		"DELETE /v1/assistant/sessions/:sid",
		"GET /v1/assistant/sessions/:sid/messages",
		"POST /v1/assistant/sessions/:sid/review",
		"POST /v1/assistant/sessions/:sid/dialogue",
		"POST /v1/assistant/sessions/:sid/directives",
	} {
		require.True(t, routes[want], want)
	}
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	r := newTestRouter()
	r.Engine().GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
