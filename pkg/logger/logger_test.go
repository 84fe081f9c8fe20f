package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_AddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "debug", "json")
	t.Cleanup(func() { defaultLogger.Store(nil) })

	ctx := WithContext(context.Background(), RequestIDKey, "req-1")
	ctx = WithContext(ctx, UserIDKey, "u1")
	ctx = WithContext(ctx, AIKindKey, "summary")

	Error(ctx, "compute failed", errors.New("boom"), "attempt", 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "compute failed", line["msg"])
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "u1", line["user_id"])
	assert.Equal(t, "summary", line["ai_kind"])
	assert.Equal(t, "boom", line["error"])
	assert.EqualValues(t, 2, line["attempt"])
	assert.NotContains(t, line, "story_id")

	src, ok := line["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, src["file"], "logger_test.go")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "warn", "text")
	t.Cleanup(func() { defaultLogger.Store(nil) })

	Info(context.Background(), "hidden")
	assert.Empty(t, buf.String())

	Warn(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel("WARNING").String())
	assert.Equal(t, "INFO", parseLevel("unknown").String())
}
