package eino

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom-ai-api/internal/domain/service"
)

func TestModelNames(t *testing.T) {
	assert.Empty(t, modelNameFromInput(nil))
	assert.Empty(t, modelNameFromOutput(&model.CallbackOutput{}))
	assert.Equal(t, "gpt-4o-mini", modelNameFromInput(&model.CallbackInput{Config: &model.Config{Model: "gpt-4o-mini"}}))
}

func TestCallState(t *testing.T) {
	ctx := service.WithWorkflow(context.Background(), "summary")
	ctx = service.WithProvider(ctx, "openai")

	ctx = onStart(ctx, nil, &model.CallbackInput{Config: &model.Config{Model: "gpt-4o-mini"}})
	st := stateFrom(ctx)
	require.NotNil(t, st)
	assert.Equal(t, "summary", st.workflow)
	assert.Equal(t, "openai", st.provider)
	assert.Equal(t, "gpt-4o-mini", st.model)
	assert.False(t, st.start.IsZero())

	// OnError 沿用 OnStart 记录的模型名
	ctx = onError(ctx, nil, errors.New("boom"))
	assert.Equal(t, "gpt-4o-mini", stateFrom(ctx).model)
}

func TestOnEnd_PrefersOutputModel(t *testing.T) {
	ctx := onStart(context.Background(), nil, &model.CallbackInput{})
	ctx = onEnd(ctx, nil, &model.CallbackOutput{
		Message:    &schema.Message{Role: schema.Assistant, Content: "ok"},
		Config:     &model.Config{Model: "gpt-4o"},
		TokenUsage: &model.TokenUsage{PromptTokens: 3, CompletionTokens: 5},
	})
	assert.Equal(t, "gpt-4o", stateFrom(ctx).model)
}

func TestStateFrom_WithoutStart(t *testing.T) {
	st := stateFrom(service.WithWorkflow(context.Background(), "enhance"))
	assert.Equal(t, "enhance", st.workflow)
	assert.True(t, st.start.IsZero())
}
