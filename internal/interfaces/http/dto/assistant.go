package dto

import (
	"time"

	"z-novel-copilot/internal/domain/entity"
)

// SearchRequest 检索请求
type SearchRequest struct {
	Query    string             `json:"query" binding:"required"`
	Settings *entity.AISettings `json:"settings,omitempty"`
}

// SearchResponse 检索响应
type SearchResponse struct {
	Text       string          `json:"text"`
	Sources    []entity.Source `json:"sources"`
	Status     string          `json:"status"`
	Diagnostic string          `json:"diagnostic,omitempty"`
}

// ToSearchResponse 转换检索结果
func ToSearchResponse(r entity.InvocationResult) *SearchResponse {
	sources := r.Sources
	if sources == nil {
		sources = []entity.Source{}
	}
	return &SearchResponse{
		Text:       r.Text,
		Sources:    sources,
		Status:     string(r.Status),
		Diagnostic: r.Diagnostic,
	}
}

// SessionResponse 会话信息
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewRequest 审阅请求
type ReviewRequest struct {
	ChapterTitle   string             `json:"chapter_title,omitempty"`
	ChapterContent string             `json:"chapter_content" binding:"required"`
	Settings       *entity.AISettings `json:"settings,omitempty"`
}

// DialogueRequest 对话请求
type DialogueRequest struct {
	Text     string             `json:"text" binding:"required"`
	Settings *entity.AISettings `json:"settings,omitempty"`
}

// MessageEvent 对话日志中的一条消息，SSE message 事件与列表共用
type MessageEvent struct {
	Index      int      `json:"index"`
	Role       string   `json:"role"`
	Content    string   `json:"content"`
	Directives []string `json:"directives"`
	CreatedAt  string   `json:"created_at"`
}

// ToMessageEvent 转换对话消息
func ToMessageEvent(index int, m entity.ConversationMessage) MessageEvent {
	directives := make([]string, 0, len(m.Directives))
	for _, d := range m.Directives {
		directives = append(directives, string(d))
	}
	return MessageEvent{
		Index:      index,
		Role:       string(m.Role),
		Content:    m.Content,
		Directives: directives,
		CreatedAt:  m.CreatedAt.Format(time.RFC3339),
	}
}

// MessageListResponse 对话日志
type MessageListResponse struct {
	SessionID string         `json:"session_id"`
	Busy      bool           `json:"busy"`
	Messages  []MessageEvent `json:"messages"`
}

// ToMessageListResponse 转换对话日志
func ToMessageListResponse(sessionID string, busy bool, messages []entity.ConversationMessage) *MessageListResponse {
	out := make([]MessageEvent, len(messages))
	for i, m := range messages {
		out[i] = ToMessageEvent(i, m)
	}
	return &MessageListResponse{SessionID: sessionID, Busy: busy, Messages: out}
}

// DoneEvent SSE 结束事件
type DoneEvent struct {
	Status     string `json:"status"`
	Diagnostic string `json:"diagnostic,omitempty"`
	Delivered  int    `json:"delivered"`
}

// ExtractDirectiveRequest 提取指令请求
type ExtractDirectiveRequest struct {
	Content string `json:"content"`
	Kind    string `json:"kind" binding:"required"`
}

// ExtractDirectiveResponse 提取指令响应
type ExtractDirectiveResponse struct {
	Directive string `json:"directive"`
}

// ApplyDirectiveRequest 应用指令请求
type ApplyDirectiveRequest struct {
	MessageIndex *int   `json:"message_index" binding:"required"`
	Kind         string `json:"kind" binding:"required"`
	ChapterID    string `json:"chapter_id" binding:"required"`
}

// ChapterResponse 章节响应
type ChapterResponse struct {
	ID        string `json:"id"`
	BookID    string `json:"book_id"`
	SeqNum    int    `json:"seq_num"`
	Title     string `json:"title,omitempty"`
	Outline   string `json:"outline,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Status    string `json:"status"`
	Version   int    `json:"version"`
	UpdatedAt string `json:"updated_at"`
}

// ToChapterResponse 转换章节实体
func ToChapterResponse(c *entity.Chapter) *ChapterResponse {
	if c == nil {
		return nil
	}
	return &ChapterResponse{
		ID:        c.ID,
		BookID:    c.BookID,
		SeqNum:    c.SeqNum,
		Title:     c.Title,
		Outline:   c.Outline,
		Summary:   c.Summary,
		Status:    string(c.Status),
		Version:   c.Version,
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

// ApplyDirectiveResponse 应用指令响应
type ApplyDirectiveResponse struct {
	Kind      string           `json:"kind"`
	Directive string           `json:"directive"`
	Chapter   *ChapterResponse `json:"chapter"`
}
