package assistant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-copilot/internal/domain/entity"
	apperrors "z-novel-copilot/pkg/errors"
)

// memoryChapters 内存章节仓储
type memoryChapters struct {
	byID map[string]*entity.Chapter
}

func newMemoryChapters(chapters ...*entity.Chapter) *memoryChapters {
	m := &memoryChapters{byID: map[string]*entity.Chapter{}}
	for _, c := range chapters {
		m.byID[c.ID] = c
	}
	return m
}

func (m *memoryChapters) Create(_ context.Context, c *entity.Chapter) error {
	if c.ID == "" {
		c.ID = "generated"
	}
	m.byID[c.ID] = c
	return nil
}

func (m *memoryChapters) GetByID(_ context.Context, id string) (*entity.Chapter, error) {
	return m.byID[id], nil
}

func (m *memoryChapters) UpdateSummary(_ context.Context, id, summary string) error {
	c, ok := m.byID[id]
	if !ok {
		return apperrors.ErrChapterNotFound
	}
	c.SetSummary(summary)
	return nil
}

func (m *memoryChapters) GetByBookAndSeq(_ context.Context, bookID string, seq int) (*entity.Chapter, error) {
	for _, c := range m.byID {
		if c.BookID == bookID && c.SeqNum == seq {
			return c, nil
		}
	}
	return nil, nil
}

// countingTx 记录事务调用次数
type countingTx struct{ n int }

func (t *countingTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.n++
	return fn(ctx)
}

const editorReply = "##剧情复盘：**主角**离开了村子，踏上旅途\n##下一章方向总结：进城后卷入商会纷争"

func sessionWithReply(t *testing.T, st *SessionStore) (*Session, int) {
	t.Helper()
	s := st.Create()
	s.append(entity.RoleUser, "请审阅本章")
	i, _ := s.append(entity.RoleAssistant, editorReply)
	return s, i
}

func TestDirectiveApply_CurrentSynopsisUpdatesSummary(t *testing.T) {
	st := NewSessionStore(testConfig())
	sess, idx := sessionWithReply(t, st)
	ch := entity.NewChapter("book-1", 3)
	ch.ID = "ch-3"
	repo := newMemoryChapters(ch)

	res, err := NewDirectiveService(st, repo, nil).Apply(context.Background(), ApplyInput{
		SessionID: sess.ID, MessageIndex: idx, Kind: entity.DirectiveCurrentSynopsis, ChapterID: "ch-3",
	})
	require.NoError(t, err)

	assert.Equal(t, "主角离开了村子，踏上旅途", res.Directive)
	assert.Equal(t, "主角离开了村子，踏上旅途", repo.byID["ch-3"].Summary)
	assert.Equal(t, 2, repo.byID["ch-3"].Version)
}

func TestDirectiveApply_NextSynopsisCreatesPlannedChapter(t *testing.T) {
	st := NewSessionStore(testConfig())
	sess, idx := sessionWithReply(t, st)
	ch := entity.NewChapter("book-1", 3)
	ch.ID = "ch-3"
	repo := newMemoryChapters(ch)
	tx := &countingTx{}
	svc := NewDirectiveService(st, repo, tx)

	in := ApplyInput{SessionID: sess.ID, MessageIndex: idx, Kind: entity.DirectiveNextSynopsis, ChapterID: "ch-3"}
	res, err := svc.Apply(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 1, tx.n)
	assert.Equal(t, 4, res.Chapter.SeqNum)
	assert.Equal(t, "book-1", res.Chapter.BookID)
	assert.Equal(t, entity.ChapterStatusPlanned, res.Chapter.Status)
	assert.Equal(t, "进城后卷入商会纷争", res.Chapter.Outline)

	_, err = svc.Apply(context.Background(), in)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
}

func TestDirectiveApply_Validation(t *testing.T) {
	st := NewSessionStore(testConfig())
	sess, idx := sessionWithReply(t, st)
	ch := entity.NewChapter("book-1", 1)
	ch.ID = "ch-1"
	svc := NewDirectiveService(st, newMemoryChapters(ch), nil)
	ctx := context.Background()

	_, err := NewDirectiveService(st, nil, nil).Apply(ctx, ApplyInput{SessionID: sess.ID, MessageIndex: idx, Kind: entity.DirectiveNextSynopsis, ChapterID: "ch-1"})
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)

	_, err = svc.Apply(ctx, ApplyInput{SessionID: sess.ID, MessageIndex: idx, Kind: "bogus", ChapterID: "ch-1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)

	_, err = svc.Apply(ctx, ApplyInput{SessionID: sess.ID, MessageIndex: 0, Kind: entity.DirectiveCurrentSynopsis, ChapterID: "ch-1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)

	_, err = svc.Apply(ctx, ApplyInput{SessionID: "missing", MessageIndex: idx, Kind: entity.DirectiveCurrentSynopsis, ChapterID: "ch-1"})
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	_, err = svc.Apply(ctx, ApplyInput{SessionID: sess.ID, MessageIndex: idx, Kind: entity.DirectiveCurrentSynopsis, ChapterID: "nope"})
	assert.ErrorIs(t, err, apperrors.ErrChapterNotFound)
}

func TestDirectiveApply_RequiresMarkerForKind(t *testing.T) {
	st := NewSessionStore(testConfig())
	sess := st.Create()
	critique, _ := sess.append(entity.RoleAssistant, "整体节奏偏慢，建议删减开头的环境描写。")
	summaryOnly, _ := sess.append(entity.RoleAssistant, "##剧情复盘：主角离开了村子")

	ch := entity.NewChapter("book-1", 1)
	ch.ID = "ch-1"
	repo := newMemoryChapters(ch)
	svc := NewDirectiveService(st, repo, &countingTx{})
	ctx := context.Background()

	_, err := svc.Apply(ctx, ApplyInput{SessionID: sess.ID, MessageIndex: critique, Kind: entity.DirectiveNextSynopsis, ChapterID: "ch-1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)

	_, err = svc.Apply(ctx, ApplyInput{SessionID: sess.ID, MessageIndex: critique, Kind: entity.DirectiveCurrentSynopsis, ChapterID: "ch-1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)

	_, err = svc.Apply(ctx, ApplyInput{SessionID: sess.ID, MessageIndex: summaryOnly, Kind: entity.DirectiveNextSynopsis, ChapterID: "ch-1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)

	assert.Len(t, repo.byID, 1)
	assert.Empty(t, repo.byID["ch-1"].Summary)
}
