package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-copilot/internal/application/assistant/pacer"
	"z-novel-copilot/internal/domain/entity"
	"z-novel-copilot/internal/infrastructure/llm"
	apperrors "z-novel-copilot/pkg/errors"
)

type collected struct {
	indexes  []int
	messages []entity.ConversationMessage
}

func (c *collected) sink(i int, msg entity.ConversationMessage) error {
	c.indexes = append(c.indexes, i)
	c.messages = append(c.messages, msg)
	return nil
}

func (c *collected) contents() []string {
	out := make([]string, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.Content
	}
	return out
}

func newTestReview(client *fakeClient) (*ReviewService, *SessionStore) {
	cfg := testConfig()
	sessions := NewSessionStore(cfg)
	svc := NewReviewService(cfg, NewInvoker(&fakeFactory{client: client}), NewProfileResolver(cfg), sessions, pacer.New(instantClock{}))
	return svc, sessions
}

func TestReview_PacesSegmentsInOrder(t *testing.T) {
	reply := "整体不错。\n\n节奏偏慢。\n\n##剧情复盘：主角离开村子\n##下一章方向总结：进城遇险"
	client := &fakeClient{respond: replyWith(reply)}
	svc, sessions := newTestReview(client)
	sess := sessions.Create()

	var got collected
	out, err := svc.Review(context.Background(), sess.ID, ChapterInput{Title: "离乡", Content: "正文"}, nil, got.sink)
	require.NoError(t, err)

	assert.Equal(t, 3, out.Delivered)
	assert.Equal(t, entity.StatusOK, out.Result.Status)
	assert.Equal(t, []int{0, 1, 2, 3}, got.indexes)
	assert.Equal(t, []string{"请审阅《离乡》", "整体不错。", "节奏偏慢。",
		"##剧情复盘：主角离开村子\n##下一章方向总结：进城遇险"}, got.contents())
	assert.Equal(t, entity.RoleUser, got.messages[0].Role)
	assert.Equal(t, []entity.DirectiveKind{entity.DirectiveCurrentSynopsis, entity.DirectiveNextSynopsis}, got.messages[3].Directives)
	assert.Equal(t, got.messages, sess.Messages())
	assert.False(t, sess.Busy())

	calls := client.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, ReviewSystemPrompt, calls[0].System)
	assert.False(t, calls[0].Augmented)
	assert.Contains(t, calls[0].Prompt, "正文")
}

func TestReview_NewCycleClearsLog(t *testing.T) {
	svc, sessions := newTestReview(&fakeClient{respond: replyWith("A\n\nB")})
	sess := sessions.Create()

	var first, second collected
	_, err := svc.Review(context.Background(), sess.ID, ChapterInput{Content: "一"}, nil, first.sink)
	require.NoError(t, err)
	_, err = svc.Review(context.Background(), sess.ID, ChapterInput{Content: "二"}, nil, second.sink)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, second.indexes)
	assert.Len(t, sess.Messages(), 3)
}

func TestReview_FailureAppendsSingleApology(t *testing.T) {
	client := &fakeClient{respond: failWith(&llm.ProviderError{Kind: llm.KindServiceError, StatusCode: 403, Payload: "API key not valid"})}
	svc, sessions := newTestReview(client)
	sess := sessions.Create()

	var got collected
	out, err := svc.Review(context.Background(), sess.ID, ChapterInput{Content: "正文"}, nil, got.sink)
	require.NoError(t, err)

	assert.Equal(t, entity.StatusFailed, out.Result.Status)
	require.Len(t, got.messages, 2)
	assert.Equal(t, entity.RoleAssistant, got.messages[1].Role)
	assert.True(t, strings.HasPrefix(got.messages[1].Content, "审阅遇到困难："))
}

func TestReview_RejectsEmptyChapterAndUnknownSession(t *testing.T) {
	svc, _ := newTestReview(&fakeClient{respond: replyWith("x")})
	var got collected

	_, err := svc.Review(context.Background(), "missing", ChapterInput{Content: " "}, nil, got.sink)
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)

	_, err = svc.Review(context.Background(), "missing", ChapterInput{Content: "正文"}, nil, got.sink)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestContinue_SendsHistoryAndChapter(t *testing.T) {
	client := &fakeClient{respond: replyWith("第一段\n\n第二段")}
	svc, sessions := newTestReview(client)
	sess := sessions.Create()

	var got collected
	_, err := svc.Review(context.Background(), sess.ID, ChapterInput{Title: "离乡", Content: "章节正文"}, nil, got.sink)
	require.NoError(t, err)

	got = collected{}
	out, err := svc.Continue(context.Background(), sess.ID, " 节奏怎么改？ ", nil, got.sink)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Delivered)
	assert.Equal(t, []int{3, 4, 5}, got.indexes)
	assert.Equal(t, []string{"节奏怎么改？", "第一段", "第二段"}, got.contents())

	calls := client.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "节奏怎么改？", calls[1].Prompt)
	assert.Len(t, calls[1].History, 3)
	assert.Contains(t, calls[1].System, "章节正文")
	assert.Contains(t, calls[1].System, "《离乡》")
}

func TestContinue_FailureUsesDialogueApology(t *testing.T) {
	client := &fakeClient{respond: failWith(&llm.ProviderError{Kind: llm.KindTransportFailure, Err: errors.New("fetch failed")})}
	svc, sessions := newTestReview(client)
	sess := sessions.Create()

	var got collected
	_, err := svc.Continue(context.Background(), sess.ID, "你好", nil, got.sink)
	require.NoError(t, err)
	require.Len(t, got.messages, 2)
	assert.True(t, strings.HasPrefix(got.messages[1].Content, "回复失败："))
}

func TestReview_SinkErrorStopsDelivery(t *testing.T) {
	svc, sessions := newTestReview(&fakeClient{respond: replyWith("A\n\nB\n\nC")})
	sess := sessions.Create()

	closed := errors.New("client gone")
	n := 0
	out, err := svc.Review(context.Background(), sess.ID, ChapterInput{Content: "正文"}, nil, func(int, entity.ConversationMessage) error {
		n++
		if n == 3 {
			return closed
		}
		return nil
	})
	assert.ErrorIs(t, err, closed)
	assert.Equal(t, 1, out.Delivered)
	assert.False(t, sess.Busy())
}
