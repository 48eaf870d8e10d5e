package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"z-novel-copilot/internal/application/assistant"
	"z-novel-copilot/internal/application/assistant/directive"
	"z-novel-copilot/internal/domain/entity"
	"z-novel-copilot/internal/interfaces/http/dto"
	"z-novel-copilot/pkg/logger"
)

// AssistantHandler 检索助手与主编助手处理器
type AssistantHandler struct {
	search     *assistant.SearchService
	review     *assistant.ReviewService
	directives *assistant.DirectiveService
	sessions   *assistant.SessionStore
}

// NewAssistantHandler 创建助手处理器
func NewAssistantHandler(
	search *assistant.SearchService,
	review *assistant.ReviewService,
	directives *assistant.DirectiveService,
	sessions *assistant.SessionStore,
) *AssistantHandler {
	return &AssistantHandler{
		search:     search,
		review:     review,
		directives: directives,
		sessions:   sessions,
	}
}

// Search 联网检索
// @Summary 联网检索
// @Description 调用失败时 status 为 failed，text 为可直接展示的说明
// @Tags Assistant
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/assistant/search [post]
func (h *AssistantHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.search.Search(c.Request.Context(), req.Query, req.Settings)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToSearchResponse(result))
}

// CreateSession 创建主编会话
// @Summary 创建主编会话
// @Tags Assistant
// @Produce json
// @Success 201 {object} dto.Response[dto.SessionResponse]
// @Router /v1/assistant/sessions [post]
func (h *AssistantHandler) CreateSession(c *gin.Context) {
	s := h.sessions.Create()
	dto.Created(c, dto.SessionResponse{SessionID: s.ID, CreatedAt: s.CreatedAt})
}

// ListMessages 获取对话日志
// @Summary 获取对话日志
// @Tags Assistant
// @Produce json
// @Param sid path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.MessageListResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/assistant/sessions/{sid}/messages [get]
func (h *AssistantHandler) ListMessages(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("sid"))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToMessageListResponse(s.ID, s.Busy(), s.Messages()))
}

// DeleteSession 删除会话，停止进行中的投递
// @Summary 删除会话
// @Tags Assistant
// @Param sid path string true "会话 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/assistant/sessions/{sid} [delete]
func (h *AssistantHandler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("sid")); err != nil {
		respondError(c, err)
		return
	}
	dto.NoContent(c)
}

// Review 审阅章节
// @Summary 审阅章节
// @Description 开始新一轮审阅，通过 SSE 按节奏推送主编意见
// @Tags Assistant
// @Accept json
// @Produce text/event-stream
// @Param sid path string true "会话 ID"
// @Param body body dto.ReviewRequest true "审阅请求"
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/assistant/sessions/{sid}/review [post]
func (h *AssistantHandler) Review(c *gin.Context) {
	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	sid := c.Param("sid")
	chapter := assistant.ChapterInput{Title: req.ChapterTitle, Content: req.ChapterContent}
	h.stream(c, func(ctx context.Context, sink assistant.MessageSink) (assistant.Outcome, error) {
		return h.review.Review(ctx, sid, chapter, req.Settings, sink)
	})
}

// Dialogue 继续对话
// @Summary 继续对话
// @Tags Assistant
// @Accept json
// @Produce text/event-stream
// @Param sid path string true "会话 ID"
// @Param body body dto.DialogueRequest true "对话请求"
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/assistant/sessions/{sid}/dialogue [post]
func (h *AssistantHandler) Dialogue(c *gin.Context) {
	var req dto.DialogueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	sid := c.Param("sid")
	h.stream(c, func(ctx context.Context, sink assistant.MessageSink) (assistant.Outcome, error) {
		return h.review.Continue(ctx, sid, req.Text, req.Settings, sink)
	})
}

// ExtractDirective 从文本中提取指令
// @Summary 提取指令
// @Tags Assistant
// @Accept json
// @Produce json
// @Param body body dto.ExtractDirectiveRequest true "提取请求"
// @Success 200 {object} dto.Response[dto.ExtractDirectiveResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/assistant/directives/extract [post]
func (h *AssistantHandler) ExtractDirective(c *gin.Context) {
	var req dto.ExtractDirectiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	kind := entity.DirectiveKind(req.Kind)
	if !kind.Valid() {
		dto.BadRequest(c, "unknown directive kind: "+req.Kind)
		return
	}
	dto.Success(c, dto.ExtractDirectiveResponse{Directive: directive.Extract(req.Content, kind)})
}

// ApplyDirective 将助手消息中的指令写回章节库
// @Summary 应用指令
// @Tags Assistant
// @Accept json
// @Produce json
// @Param sid path string true "会话 ID"
// @Param body body dto.ApplyDirectiveRequest true "应用请求"
// @Success 200 {object} dto.Response[dto.ApplyDirectiveResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/assistant/sessions/{sid}/directives [post]
func (h *AssistantHandler) ApplyDirective(c *gin.Context) {
	var req dto.ApplyDirectiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.directives.Apply(c.Request.Context(), assistant.ApplyInput{
		SessionID:    c.Param("sid"),
		MessageIndex: *req.MessageIndex,
		Kind:         entity.DirectiveKind(req.Kind),
		ChapterID:    req.ChapterID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ApplyDirectiveResponse{
		Kind:      string(res.Kind),
		Directive: res.Directive,
		Chapter:   dto.ToChapterResponse(res.Chapter),
	})
}

type runFunc func(ctx context.Context, sink assistant.MessageSink) (assistant.Outcome, error)

// stream 以 SSE 推送对话消息；首条消息之前的错误按普通 JSON 错误返回
func (h *AssistantHandler) stream(c *gin.Context, run runFunc) {
	ctx := c.Request.Context()
	msgCh := make(chan dto.MessageEvent)
	doneCh := make(chan assistant.Outcome, 1)
	errCh := make(chan error, 1)

	go func() {
		out, err := run(ctx, func(index int, msg entity.ConversationMessage) error {
			select {
			case msgCh <- dto.ToMessageEvent(index, msg):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			errCh <- err
			return
		}
		doneCh <- out
	}()

	var pending *dto.MessageEvent
	select {
	case ev := <-msgCh:
		pending = &ev
	case err := <-errCh:
		respondError(c, err)
		return
	case out := <-doneCh:
		doneCh <- out
	case <-ctx.Done():
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		if pending != nil {
			c.SSEvent("message", *pending)
			pending = nil
			return true
		}

		select {
		case ev := <-msgCh:
			c.SSEvent("message", ev)
			return true

		case out := <-doneCh:
			c.SSEvent("done", dto.DoneEvent{
				Status:     string(out.Result.Status),
				Diagnostic: out.Result.Diagnostic,
				Delivered:  out.Delivered,
			})
			return false

		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				logger.Warn(ctx, "assistant stream aborted", "error", err.Error())
			}
			c.SSEvent("error", gin.H{"message": err.Error()})
			return false

		case <-ctx.Done():
			return false
		}
	})
}
