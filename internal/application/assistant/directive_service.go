package assistant

import (
	"context"
	"strings"

	"z-novel-copilot/internal/application/assistant/directive"
	"z-novel-copilot/internal/domain/entity"
	"z-novel-copilot/internal/domain/repository"
	apperrors "z-novel-copilot/pkg/errors"
	"z-novel-copilot/pkg/logger"
	"z-novel-copilot/pkg/metrics"
)

// ApplyInput 应用指令的参数
type ApplyInput struct {
	SessionID    string
	MessageIndex int
	Kind         entity.DirectiveKind
	ChapterID    string
}

// ApplyResult 指令应用结果
type ApplyResult struct {
	Kind      entity.DirectiveKind
	Directive string
	Chapter   *entity.Chapter
}

// DirectiveService 将助手消息中的指令写回章节库
type DirectiveService struct {
	sessions *SessionStore
	chapters repository.ChapterRepository
	tx       repository.Transactor
}

// NewDirectiveService 创建指令服务；chapters 为 nil 时 Apply 返回 ErrStoreUnavailable
func NewDirectiveService(sessions *SessionStore, chapters repository.ChapterRepository, tx repository.Transactor) *DirectiveService {
	return &DirectiveService{sessions: sessions, chapters: chapters, tx: tx}
}

// Apply 提取并应用指令
// currentSynopsis 写入当前章的剧情复盘；nextSynopsis 以指令为大纲创建下一章
func (s *DirectiveService) Apply(ctx context.Context, in ApplyInput) (*ApplyResult, error) {
	if !in.Kind.Valid() {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "unknown directive kind")
	}
	if strings.TrimSpace(in.ChapterID) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "chapter_id is required")
	}
	if s.chapters == nil {
		return nil, apperrors.ErrStoreUnavailable
	}

	sess, err := s.sessions.Get(in.SessionID)
	if err != nil {
		return nil, err
	}
	msg, ok := sess.Message(in.MessageIndex)
	if !ok || msg.Role != entity.RoleAssistant {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "message_index must refer to an assistant message")
	}

	// 未带对应标记的消息不写回
	if !strings.Contains(msg.Content, directive.Marker(in.Kind)) {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "message carries no "+string(in.Kind)+" directive")
	}
	text := directive.Extract(msg.Content, in.Kind)
	if text == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "message carries no directive")
	}

	var chapter *entity.Chapter
	switch in.Kind {
	case entity.DirectiveCurrentSynopsis:
		chapter, err = s.applySummary(ctx, in.ChapterID, text)
	case entity.DirectiveNextSynopsis:
		chapter, err = s.applyNextOutline(ctx, in.ChapterID, text)
	}
	if err != nil {
		metrics.DirectiveAppliedTotal.WithLabelValues(string(in.Kind), "error").Inc()
		return nil, err
	}

	metrics.DirectiveAppliedTotal.WithLabelValues(string(in.Kind), "ok").Inc()
	logger.Info(ctx, "directive applied",
		"kind", in.Kind,
		"chapter_id", chapter.ID,
		"seq_num", chapter.SeqNum,
	)
	return &ApplyResult{Kind: in.Kind, Directive: text, Chapter: chapter}, nil
}

func (s *DirectiveService) applySummary(ctx context.Context, chapterID, summary string) (*entity.Chapter, error) {
	if err := s.chapters.UpdateSummary(ctx, chapterID, summary); err != nil {
		return nil, err
	}
	chapter, err := s.chapters.GetByID(ctx, chapterID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to reload chapter")
	}
	if chapter == nil {
		return nil, apperrors.ErrChapterNotFound
	}
	return chapter, nil
}

func (s *DirectiveService) applyNextOutline(ctx context.Context, chapterID, outline string) (*entity.Chapter, error) {
	var next *entity.Chapter
	err := s.withTx(ctx, func(ctx context.Context) error {
		current, err := s.chapters.GetByID(ctx, chapterID)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load chapter")
		}
		if current == nil {
			return apperrors.ErrChapterNotFound
		}

		existing, err := s.chapters.GetByBookAndSeq(ctx, current.BookID, current.SeqNum+1)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load next chapter")
		}
		if existing != nil {
			return apperrors.New(apperrors.CodeConflict, "next chapter already exists").
				WithDetail(existing.ID)
		}

		next = current.NextFromOutline(outline)
		if err := s.chapters.Create(ctx, next); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create next chapter")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *DirectiveService) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.WithTransaction(ctx, fn)
}
