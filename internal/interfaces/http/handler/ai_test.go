package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom-ai-api/internal/application/aiservice"
	"storyloom-ai-api/internal/application/quota"
	"storyloom-ai-api/internal/domain/entity"
	apperrors "storyloom-ai-api/pkg/errors"
)

type fakeAIService struct {
	consistencyIn aiservice.ConsistencyInput
	consistency   *aiservice.ConsistencyResult
	report        *entity.ConsistencyReport
	enhance       *aiservice.EnhanceResult
	image         *aiservice.ImageResult
	summary       *aiservice.SummaryResult
	style         *aiservice.StyleTransferResult
	usage         *aiservice.UsageResult
	err           error
}

func (f *fakeAIService) Consistency(_ context.Context, in aiservice.ConsistencyInput) (*aiservice.ConsistencyResult, error) {
	f.consistencyIn = in
	return f.consistency, f.err
}

func (f *fakeAIService) ConsistencyReport(_ context.Context, _, _ string) (*entity.ConsistencyReport, error) {
	return f.report, f.err
}

func (f *fakeAIService) Enhance(_ context.Context, _ aiservice.EnhanceInput) (*aiservice.EnhanceResult, error) {
	return f.enhance, f.err
}

func (f *fakeAIService) Avatar(_ context.Context, _ aiservice.AvatarInput) (*aiservice.ImageResult, error) {
	return f.image, f.err
}

func (f *fakeAIService) CoverArt(_ context.Context, _ aiservice.CoverArtInput) (*aiservice.ImageResult, error) {
	return f.image, f.err
}

func (f *fakeAIService) Summary(_ context.Context, _ aiservice.SummaryInput) (*aiservice.SummaryResult, error) {
	return f.summary, f.err
}

func (f *fakeAIService) StyleTransfer(_ context.Context, _ aiservice.StyleTransferInput) (*aiservice.StyleTransferResult, error) {
	return f.style, f.err
}

func (f *fakeAIService) Usage(_ context.Context, _ string) (*aiservice.UsageResult, error) {
	return f.usage, f.err
}

func newTestEngine(svc AIService, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})
	h := NewAIHandler(svc)
	r.POST("/consistency", h.Consistency)
	r.GET("/consistency/report", h.ConsistencyReport)
	r.POST("/enhance", h.Enhance)
	r.POST("/avatar", h.Avatar)
	r.POST("/cover-art", h.CoverArt)
	r.POST("/summary", h.Summary)
	r.POST("/style-transfer", h.StyleTransfer)
	r.GET("/usage", h.Usage)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAIHandler_Consistency(t *testing.T) {
	svc := &fakeAIService{
		consistency: &aiservice.ConsistencyResult{
			Report: &entity.ConsistencyReport{StoryID: "s1", Score: 90},
			Cached: true,
		},
	}
	r := newTestEngine(svc, "u1")

	w := do(r, http.MethodPost, "/consistency", `{"story_id":"s1","action":"ANALYZE"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["cached"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "s1", data["story_id"])
	assert.EqualValues(t, 90, data["score"])

	assert.Equal(t, "u1", svc.consistencyIn.UserID)
	assert.Equal(t, aiservice.ActionAnalyze, svc.consistencyIn.Action)
}

func TestAIHandler_Unauthorized(t *testing.T) {
	r := newTestEngine(&fakeAIService{}, "")

	w := do(r, http.MethodPost, "/enhance", `{"content":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decode(t, w)["error"])
}

func TestAIHandler_BadRequest(t *testing.T) {
	r := newTestEngine(&fakeAIService{}, "u1")

	w := do(r, http.MethodPost, "/consistency", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "invalid request body")

	w = do(r, http.MethodGet, "/consistency/report", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAIHandler_EnhanceIsUnwrapped(t *testing.T) {
	svc := &fakeAIService{enhance: &aiservice.EnhanceResult{EnhancedContent: "better"}}
	r := newTestEngine(svc, "u1")

	w := do(r, http.MethodPost, "/enhance", `{"content":"good"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "better", body["enhancedContent"])
	assert.NotContains(t, body, "success")
}

func TestAIHandler_ImageCachedFlag(t *testing.T) {
	svc := &fakeAIService{image: &aiservice.ImageResult{URL: "https://img/a.png", Cached: true}}
	r := newTestEngine(svc, "u1")

	for _, path := range []string{"/avatar", "/cover-art"} {
		body := `{"description":"a knight"}`
		if path == "/cover-art" {
			body = `{"title":"Dawn"}`
		}
		w := do(r, http.MethodPost, path, body)
		require.Equal(t, http.StatusOK, w.Code, path)

		out := decode(t, w)
		assert.Equal(t, true, out["cached"])
		assert.Equal(t, "https://img/a.png", out["data"].(map[string]any)["url"])
	}
}

func TestAIHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		retryable  bool
		retryAfter string
	}{
		{
			name: "quota exceeded",
			err: apperrors.ErrTooManyRequests.WithError(&quota.RateLimitExceededError{
				UserID: "u1", Limit: 10, Used: 10, RetryAfter: 90*time.Minute + 500*time.Millisecond,
			}),
			wantStatus: http.StatusTooManyRequests,
			wantError:  "daily AI quota exceeded",
			retryAfter: "5401",
		},
		{
			name:       "safety rejected",
			err:        apperrors.ErrSafetyRejected.WithDetail("violence"),
			wantStatus: http.StatusBadRequest,
			wantError:  "content rejected by safety check: violence",
		},
		{
			name:       "story not found",
			err:        apperrors.ErrStoryNotFound,
			wantStatus: http.StatusNotFound,
			wantError:  "story not found",
		},
		{
			name:       "upstream failure",
			err:        apperrors.ErrUpstreamFailure.WithError(errors.New("502")),
			wantStatus: http.StatusInternalServerError,
			wantError:  "upstream provider failure",
			retryable:  true,
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestEngine(&fakeAIService{err: tt.err}, "u1")

			w := do(r, http.MethodPost, "/style-transfer", `{"content":"x","style":"noir"}`)
			require.Equal(t, tt.wantStatus, w.Code)

			body := decode(t, w)
			assert.Equal(t, tt.wantError, body["error"])
			if tt.retryable {
				assert.Equal(t, true, body["retryable"])
			} else {
				assert.NotContains(t, body, "retryable")
			}
			assert.Equal(t, tt.retryAfter, w.Header().Get("Retry-After"))
		})
	}
}

func TestAIHandler_Usage(t *testing.T) {
	svc := &fakeAIService{usage: &aiservice.UsageResult{Date: "2026-01-02", Count: 3, Limit: 5, Limits: map[string]int{"avatar": 10, "cover-art": 5}}}
	r := newTestEngine(svc, "u1")

	w := do(r, http.MethodGet, "/usage", "")
	require.Equal(t, http.StatusOK, w.Code)

	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "2026-01-02", data["date"])
	assert.EqualValues(t, 3, data["count"])
	assert.EqualValues(t, 5, data["limit"])
	limits := data["limits"].(map[string]any)
	assert.EqualValues(t, 10, limits["avatar"])
	assert.EqualValues(t, 5, limits["cover-art"])
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 60, retryAfterSeconds(time.Minute))
	assert.Equal(t, 61, retryAfterSeconds(time.Minute+time.Millisecond))
}
