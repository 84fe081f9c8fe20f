// Package eino 注册 Eino 全局回调，为 ChatModel 调用上报指标与追踪
package eino

import (
	"context"
	"sync"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storyloom-ai-api/internal/domain/service"
	"storyloom-ai-api/pkg/metrics"
)

var initOnce sync.Once

// Init 注册全局回调，进程内只生效一次
func Init() {
	initOnce.Do(func() {
		einocb.AppendGlobalHandlers(
			cbtemplate.NewHandlerHelper().ChatModel(chatModelHandler()).Handler(),
		)
	})
}

// callState OnStart 时记录，OnEnd/OnError 读取
type callState struct {
	start    time.Time
	workflow string
	provider string
	model    string
}

type callStateKey struct{}

func chatModelHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: onStart,
		OnEnd:   onEnd,
		OnError: onError,
	}
}

func onStart(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
	st := &callState{
		start:    time.Now(),
		workflow: service.WorkflowFromContext(ctx),
		provider: service.ProviderFromContext(ctx),
		model:    modelNameFromInput(input),
	}
	ctx = context.WithValue(ctx, callStateKey{}, st)

	attrs := []attribute.KeyValue{
		attribute.String("ai.workflow", st.workflow),
		attribute.String("llm.provider", st.provider),
		attribute.String("llm.model", st.model),
	}
	if info != nil {
		attrs = append(attrs, attribute.String("eino.node_name", info.Name))
	}
	ctx, _ = otel.Tracer("eino").Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
	return ctx
}

func onEnd(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
	st := stateFrom(ctx)
	if name := modelNameFromOutput(output); name != "" {
		st.model = name
	}
	observe(st, "success")

	span := trace.SpanFromContext(ctx)
	if output != nil && output.TokenUsage != nil {
		usage := output.TokenUsage
		metrics.LLMTokensUsed.WithLabelValues(st.workflow, st.provider, st.model, "prompt").Add(float64(usage.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(st.workflow, st.provider, st.model, "completion").Add(float64(usage.CompletionTokens))
		span.SetAttributes(
			attribute.Int("llm.prompt_tokens", usage.PromptTokens),
			attribute.Int("llm.completion_tokens", usage.CompletionTokens),
		)
	}
	span.End()
	return ctx
}

func onError(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
	observe(stateFrom(ctx), "error")

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
	return ctx
}

// stateFrom 取出 OnStart 保存的状态；未经过 OnStart 时从 ctx 重新推断标签
func stateFrom(ctx context.Context) *callState {
	if st, ok := ctx.Value(callStateKey{}).(*callState); ok && st != nil {
		return st
	}
	return &callState{
		workflow: service.WorkflowFromContext(ctx),
		provider: service.ProviderFromContext(ctx),
	}
}

func observe(st *callState, status string) {
	metrics.LLMCallTotal.WithLabelValues(st.workflow, st.provider, st.model, status).Inc()
	if !st.start.IsZero() {
		metrics.LLMCallDuration.WithLabelValues(st.workflow, st.provider, st.model).Observe(time.Since(st.start).Seconds())
	}
}

func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

func modelNameFromOutput(out *model.CallbackOutput) string {
	if out == nil || out.Config == nil {
		return ""
	}
	return out.Config.Model
}
