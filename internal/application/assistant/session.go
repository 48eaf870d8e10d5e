package assistant

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"z-novel-copilot/internal/application/assistant/directive"
	"z-novel-copilot/internal/config"
	"z-novel-copilot/internal/domain/entity"
	apperrors "z-novel-copilot/pkg/errors"
	"z-novel-copilot/pkg/logger"
	"z-novel-copilot/pkg/metrics"
)

// Session 一次主编对话会话，对话日志只追加、按时间顺序排列
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	messages   []entity.ConversationMessage
	chapter    ChapterInput
	busy       bool
	cancel     context.CancelFunc
	lastActive time.Time
}

// Messages 返回对话日志快照
func (s *Session) Messages() []entity.ConversationMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.ConversationMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Message 返回指定下标的消息
func (s *Session) Message(index int) (entity.ConversationMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.messages) {
		return entity.ConversationMessage{}, false
	}
	return s.messages[index], true
}

// Chapter 返回最近一次审阅的章节
func (s *Session) Chapter() ChapterInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chapter
}

// Busy 是否有调用在进行
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// startReview 开始新一轮审阅，清空对话日志
func (s *Session) startReview(ch ChapterInput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.chapter = ch
}

// append 追加一条消息并返回其下标
func (s *Session) append(role entity.Role, content string) (int, entity.ConversationMessage) {
	msg := entity.ConversationMessage{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if role == entity.RoleAssistant {
		msg.Directives = directive.Detect(content)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	s.lastActive = msg.CreatedAt
	return len(s.messages) - 1, msg
}

// SessionStore 内存会话存储，不做持久化
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	idleTTL  time.Duration
	now      func() time.Time
}

// NewSessionStore 创建会话存储
func NewSessionStore(cfg *config.Config) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		idleTTL:  cfg.Assistant.SessionIdleTTL,
		now:      time.Now,
	}
}

// Create 创建新会话
func (st *SessionStore) Create() *Session {
	now := st.now()
	s := &Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		lastActive: now,
	}

	st.mu.Lock()
	st.sessions[s.ID] = s
	n := len(st.sessions)
	st.mu.Unlock()

	metrics.AssistantActiveSessions.Set(float64(n))
	return s
}

// Get 获取会话
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return s, nil
}

// Delete 删除会话并取消进行中的调用与投递
func (st *SessionStore) Delete(id string) error {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	n := len(st.sessions)
	st.mu.Unlock()
	if !ok {
		return apperrors.ErrSessionNotFound
	}

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	metrics.AssistantActiveSessions.Set(float64(n))
	return nil
}

// Acquire 占用会话；同一会话同一时刻只允许一个调用
// 返回的 context 在 release 或会话删除时取消
func (st *SessionStore) Acquire(ctx context.Context, id string) (context.Context, *Session, func(), error) {
	s, err := st.Get(id)
	if err != nil {
		return nil, nil, nil, err
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, nil, nil, apperrors.ErrSessionBusy
	}
	runCtx, cancel := context.WithCancel(logger.WithContext(ctx, logger.SessionIDKey, id))
	s.busy = true
	s.cancel = cancel
	s.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			s.busy = false
			s.cancel = nil
			s.lastActive = st.now()
			s.mu.Unlock()
			cancel()
		})
	}
	return runCtx, s, release, nil
}

// PurgeIdle 清理空闲超时且没有调用在进行的会话
func (st *SessionStore) PurgeIdle() int {
	if st.idleTTL <= 0 {
		return 0
	}
	deadline := st.now().Add(-st.idleTTL)

	st.mu.Lock()
	defer st.mu.Unlock()

	purged := 0
	for id, s := range st.sessions {
		s.mu.Lock()
		idle := !s.busy && s.lastActive.Before(deadline)
		s.mu.Unlock()
		if idle {
			delete(st.sessions, id)
			purged++
		}
	}
	metrics.AssistantActiveSessions.Set(float64(len(st.sessions)))
	return purged
}

// Run 周期性清理空闲会话，直到 ctx 结束
func (st *SessionStore) Run(ctx context.Context) {
	if st.idleTTL <= 0 {
		return
	}
	interval := st.idleTTL / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.PurgeIdle(); n > 0 {
				logger.Info(ctx, "purged idle assistant sessions", "count", n)
			}
		}
	}
}
