package assistant

import (
	"context"
	"strings"

	"z-novel-copilot/internal/application/assistant/pacer"
	"z-novel-copilot/internal/config"
	"z-novel-copilot/internal/domain/entity"
	apperrors "z-novel-copilot/pkg/errors"
	"z-novel-copilot/pkg/logger"
	"z-novel-copilot/pkg/metrics"
)

// MessageSink 接收写入对话日志的消息
type MessageSink func(index int, msg entity.ConversationMessage) error

// Outcome 一次审阅或对话的结果
type Outcome struct {
	Result    entity.InvocationResult
	Delivered int
}

// ReviewService 主编审阅与后续对话
type ReviewService struct {
	invoker  *Invoker
	resolver *ProfileResolver
	sessions *SessionStore
	pacer    *pacer.Pacer
	maxRunes int

	reviewPolicy   pacer.Policy
	dialoguePolicy pacer.Policy
}

// NewReviewService 创建审阅服务
func NewReviewService(cfg *config.Config, invoker *Invoker, resolver *ProfileResolver, sessions *SessionStore, p *pacer.Pacer) *ReviewService {
	review := pacer.ReviewPolicy()
	if cfg.Assistant.ReviewMinDelay > 0 {
		review.MinDelay = cfg.Assistant.ReviewMinDelay
	}
	if cfg.Assistant.ReviewPerRune > 0 {
		review.PerRune = cfg.Assistant.ReviewPerRune
	}
	dialogue := pacer.DialoguePolicy()
	if cfg.Assistant.DialogueDelay > 0 {
		dialogue.MinDelay = cfg.Assistant.DialogueDelay
	}

	return &ReviewService{
		invoker:        invoker,
		resolver:       resolver,
		sessions:       sessions,
		pacer:          p,
		maxRunes:       cfg.Assistant.MaxChapterRunes,
		reviewPolicy:   review,
		dialoguePolicy: dialogue,
	}
}

// Review 开始新一轮审阅：清空对话日志，记录请求，并按审阅节奏投递主编意见
func (s *ReviewService) Review(ctx context.Context, sessionID string, ch ChapterInput, settings *entity.AISettings, sink MessageSink) (Outcome, error) {
	if strings.TrimSpace(ch.Content) == "" {
		return Outcome{}, apperrors.New(apperrors.CodeInvalidParam, "chapter content is required")
	}

	runCtx, sess, release, err := s.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	sess.startReview(ch)
	if err := sink(sess.append(entity.RoleUser, reviewRequestLabel(ch))); err != nil {
		return Outcome{}, err
	}

	req := entity.InvocationRequest{
		Prompt: reviewPrompt(ch, s.maxRunes),
		System: ReviewSystemPrompt,
	}
	result := s.invoker.Run(runCtx, s.resolver.Resolve(settings), req, SurfaceReview)
	return s.deliver(runCtx, sess, result, s.reviewPolicy, SurfaceReview, sink)
}

// Continue 在当前审阅上下文中继续对话
func (s *ReviewService) Continue(ctx context.Context, sessionID, text string, settings *entity.AISettings, sink MessageSink) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, apperrors.New(apperrors.CodeInvalidParam, "text is required")
	}

	runCtx, sess, release, err := s.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	history := sess.Messages()
	if err := sink(sess.append(entity.RoleUser, text)); err != nil {
		return Outcome{}, err
	}

	req := entity.InvocationRequest{
		Prompt:  text,
		System:  dialogueSystem(sess.Chapter(), s.maxRunes),
		History: history,
	}
	result := s.invoker.Run(runCtx, s.resolver.Resolve(settings), req, SurfaceDialogue)
	return s.deliver(runCtx, sess, result, s.dialoguePolicy, SurfaceDialogue, sink)
}

// deliver 失败时追加一条致歉消息，成功时按节奏分段追加
func (s *ReviewService) deliver(ctx context.Context, sess *Session, result entity.InvocationResult, policy pacer.Policy, surface Surface, sink MessageSink) (Outcome, error) {
	out := Outcome{Result: result}

	if result.Failed() {
		if err := sink(sess.append(entity.RoleAssistant, result.Text)); err != nil {
			return out, err
		}
		out.Delivered = 1
		return out, nil
	}

	n, err := s.pacer.Deliver(ctx, result.Text, policy, func(_ int, segment string) error {
		return sink(sess.append(entity.RoleAssistant, segment))
	})
	out.Delivered = n
	metrics.AssistantPacedSegmentsTotal.WithLabelValues(string(surface)).Add(float64(n))
	if err != nil {
		logger.Warn(ctx, "paced delivery stopped", "delivered", n, "error", err.Error())
		return out, err
	}
	return out, nil
}
