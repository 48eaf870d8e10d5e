package assistant

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-copilot/internal/application/assistant/diagnose"
	"z-novel-copilot/internal/domain/entity"
	"z-novel-copilot/internal/infrastructure/llm"
	"z-novel-copilot/pkg/logger"
	"z-novel-copilot/pkg/metrics"
	"z-novel-copilot/pkg/tracer"
)

// Surface 调用来源
type Surface string

const (
	SurfaceSearch   Surface = "search"
	SurfaceReview   Surface = "review"
	SurfaceDialogue Surface = "dialogue"
)

const (
	// DegradedPromptNote 降级重试时追加到提示词末尾
	DegradedPromptNote = "（联网检索当前不可用，请基于已有知识作答。）"
	// DegradedAnswerNote 降级成功时追加到回答末尾
	DegradedAnswerNote = "（注：实时联网检索暂不可用，以上回答基于模型已有知识。）"
)

// apologyFormats 各入口的失败文案，保留"困难"/"失败"字样以兼容按文本判断失败的前端
var apologyFormats = map[Surface]string{
	SurfaceSearch:   "检索遇到困难：%s",
	SurfaceReview:   "审阅遇到困难：%s",
	SurfaceDialogue: "回复失败：%s",
}

// Apology 返回失败时展示的文本
func Apology(surface Surface, diagnostic string) string {
	format, ok := apologyFormats[surface]
	if !ok {
		format = apologyFormats[SurfaceSearch]
	}
	return fmt.Sprintf(format, diagnostic)
}

// Invoker 调用编排器，任何失败都转换为可展示的结果，不向上返回错误
type Invoker struct {
	factory llm.ClientFactory
}

// NewInvoker 创建调用编排器
func NewInvoker(factory llm.ClientFactory) *Invoker {
	return &Invoker{factory: factory}
}

// Run 执行一次调用
// 厂商路径且 Augmented 时：Primary（联网增强）失败后进入 Degraded（关闭增强、修改提示词）再试一次
// 其余情况只调用一次
func (iv *Invoker) Run(ctx context.Context, profile entity.ProviderProfile, req entity.InvocationRequest, surface Surface) entity.InvocationResult {
	ctx = logger.WithContext(ctx, logger.SurfaceKey, string(surface))
	ctx, span := tracer.Start(ctx, "assistant.Invoke", trace.WithAttributes(
		attribute.String("assistant.surface", string(surface)),
		attribute.String("llm.provider", string(profile.Provider)),
		attribute.String("llm.model", profile.Model),
		attribute.Bool("llm.augmented", req.Augmented),
	))
	defer span.End()

	start := time.Now()
	result, err := iv.invoke(ctx, profile, req, span)
	if err != nil {
		diagnostic := diagnose.Message(err)
		tracer.RecordError(span, err)
		logger.Error(ctx, "assistant invocation failed", err,
			"provider", profile.Provider,
			"model", profile.Model,
			"kind", llm.KindOf(err),
		)
		result = entity.InvocationResult{
			Text:       Apology(surface, diagnostic),
			Sources:    []entity.Source{},
			Status:     entity.StatusFailed,
			Diagnostic: diagnostic,
		}
	}

	span.SetAttributes(attribute.String("assistant.status", string(result.Status)))
	metrics.AssistantInvocationTotal.WithLabelValues(string(surface), string(result.Status)).Inc()
	logger.Debug(ctx, "assistant invocation finished",
		"status", result.Status,
		"sources", len(result.Sources),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result
}

func (iv *Invoker) invoke(ctx context.Context, profile entity.ProviderProfile, req entity.InvocationRequest, span trace.Span) (entity.InvocationResult, error) {
	client, err := iv.factory.ClientFor(ctx, profile)
	if err != nil {
		return entity.InvocationResult{}, err
	}

	if !req.Augmented || profile.Provider != entity.ProviderGemini {
		req.Augmented = false
		res, err := client.Invoke(ctx, req)
		if err != nil {
			return entity.InvocationResult{}, err
		}
		return settle(res), nil
	}

	// Primary
	res, err := client.Invoke(ctx, req)
	if err == nil {
		return settle(res), nil
	}
	if ctx.Err() != nil || !llm.Retryable(err) {
		return entity.InvocationResult{}, err
	}
	logger.Warn(ctx, "augmented call failed, retrying without live retrieval",
		"provider", profile.Provider,
		"model", profile.Model,
		"kind", llm.KindOf(err),
		"error", err.Error(),
	)
	span.AddEvent("assistant.degraded", trace.WithAttributes(attribute.String("error", err.Error())))

	// Degraded
	res, err = client.Invoke(ctx, degrade(req))
	if err != nil {
		return entity.InvocationResult{}, err
	}
	metrics.AssistantDegradedTotal.WithLabelValues(string(profile.Provider)).Inc()
	return entity.InvocationResult{
		Text:    res.Text + "\n\n" + DegradedAnswerNote,
		Sources: []entity.Source{},
		Status:  entity.StatusDegraded,
	}, nil
}

// degrade 关闭联网增强并在提示词后注明检索不可用
func degrade(req entity.InvocationRequest) entity.InvocationRequest {
	req.Augmented = false
	req.Prompt = req.Prompt + "\n\n" + DegradedPromptNote
	return req
}

func settle(res entity.InvocationResult) entity.InvocationResult {
	if res.Sources == nil {
		res.Sources = []entity.Source{}
	}
	res.Status = entity.StatusOK
	res.Diagnostic = ""
	return res
}
