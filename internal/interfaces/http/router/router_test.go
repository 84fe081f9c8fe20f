package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom-ai-api/internal/application/aiservice"
	"storyloom-ai-api/internal/config"
	"storyloom-ai-api/internal/domain/entity"
	"storyloom-ai-api/internal/interfaces/http/handler"
	"storyloom-ai-api/internal/interfaces/http/middleware"
)

type okChecker struct{}

func (okChecker) HealthCheck(context.Context) error { return nil }

type stubAI struct {
	handler.AIService
	lastUser string
}

func (s *stubAI) Enhance(_ context.Context, in aiservice.EnhanceInput) (*aiservice.EnhanceResult, error) {
	s.lastUser = in.UserID
	return &aiservice.EnhanceResult{EnhancedContent: "ok"}, nil
}

func (s *stubAI) ConsistencyReport(context.Context, string, string) (*entity.ConsistencyReport, error) {
	return &entity.ConsistencyReport{StoryID: "s1"}, nil
}

func newTestRouter(svc handler.AIService) *Router {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Observability.Metrics.Enabled = true

	return New(cfg,
		handler.NewHealthHandler("test", okChecker{}, okChecker{}),
		handler.NewAIHandler(svc),
		nil,
	)
}

func TestRouter_SystemEndpoints(t *testing.T) {
	r := newTestRouter(&stubAI{})

	for _, path := range []string{"/health", "/ready", "/live", "/metrics"} {
		w := httptest.NewRecorder()
		r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_AIRoutesRequireCaller(t *testing.T) {
	svc := &stubAI{}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/enhance", strings.NewReader(`{"content":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	r.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/enhance", strings.NewReader(`{"content":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.UserIDHeader, "u-dev")
	r.Engine().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-dev", svc.lastUser)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/consistency/report?story_id=s1", nil)
	req.Header.Set(middleware.UserIDHeader, "u-dev")
	r.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
