package safety

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "storyloom-ai-api/pkg/errors"
)

type stubClassifier struct {
	verdict string
	err     error
	delay   time.Duration
}

func (s *stubClassifier) Classify(ctx context.Context, _ string) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.verdict, s.err
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		raw    string
		safe   bool
		reason string
	}{
		{"SAFE", true, ""},
		{"safe", false, reasonUnrecognized},
		{" SAFE", false, reasonUnrecognized},
		{"SAFE\n", false, reasonUnrecognized},
		{"SAFE but borderline", false, reasonUnrecognized},
		{"", false, reasonUnrecognized},
		{`{"verdict":"SAFE"}`, false, reasonUnrecognized},
		{"UNSAFE: graphic violence", false, "graphic violence"},
		{"UNSAFE:", false, reasonUnrecognized},
		{"UNSAFE", false, reasonUnrecognized},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v := ParseVerdict(tt.raw)
			assert.Equal(t, tt.safe, v.Safe)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestGate_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("safe passes", func(t *testing.T) {
		g := NewGate(&stubClassifier{verdict: "SAFE"}, time.Second)
		assert.NoError(t, g.Check(ctx, "a friendly dragon"))
	})

	t.Run("unsafe is a safety rejection", func(t *testing.T) {
		g := NewGate(&stubClassifier{verdict: "UNSAFE: gore"}, time.Second)
		err := g.Check(ctx, "text")
		require.Error(t, err)
		appErr := apperrors.AsAppError(err)
		assert.Equal(t, apperrors.CodeSafetyRejected, appErr.Code)
		assert.Equal(t, 400, appErr.HTTPStatus)
		assert.Equal(t, "gore", appErr.Detail)
	})

	t.Run("classifier error is a retryable upstream failure", func(t *testing.T) {
		g := NewGate(&stubClassifier{err: errors.New("503")}, time.Second)
		err := g.Check(ctx, "text")
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrUpstreamFailure))
		assert.True(t, apperrors.IsRetryable(err))
	})

	t.Run("timeout is never safe", func(t *testing.T) {
		g := NewGate(&stubClassifier{verdict: "SAFE", delay: time.Second}, 20*time.Millisecond)
		v, err := g.Classify(ctx, "text")
		require.Error(t, err)
		assert.Nil(t, v)
		assert.True(t, errors.Is(err, apperrors.ErrUpstreamFailure))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}
