package assistant

import (
	"context"
	"sync"
	"time"

	"z-novel-copilot/internal/config"
	"z-novel-copilot/internal/domain/entity"
	"z-novel-copilot/internal/infrastructure/llm"
)

// fakeClient 按 respond 返回结果并记录每次请求
type fakeClient struct {
	mu       sync.Mutex
	requests []entity.InvocationRequest
	respond  func(req entity.InvocationRequest) (entity.InvocationResult, error)
}

func (c *fakeClient) Invoke(ctx context.Context, req entity.InvocationRequest) (entity.InvocationResult, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	return c.respond(req)
}

func (c *fakeClient) calls() []entity.InvocationRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entity.InvocationRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// fakeFactory 与真实工厂一样先校验配置
type fakeFactory struct {
	client *fakeClient
}

func (f *fakeFactory) ClientFor(_ context.Context, profile entity.ProviderProfile) (llm.Client, error) {
	if err := llm.Validate(profile); err != nil {
		return nil, err
	}
	return f.client, nil
}

func replyWith(text string) func(entity.InvocationRequest) (entity.InvocationResult, error) {
	return func(entity.InvocationRequest) (entity.InvocationResult, error) {
		return entity.InvocationResult{Text: text}, nil
	}
}

func failWith(err error) func(entity.InvocationRequest) (entity.InvocationResult, error) {
	return func(entity.InvocationRequest) (entity.InvocationResult, error) {
		return entity.InvocationResult{}, err
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LLM.DefaultProvider = "gemini"
	cfg.LLM.DefaultModel = "gemini-2.5-flash"
	cfg.LLM.FallbackAPIKey = "env-key"
	cfg.Assistant.SearchCacheTTL = 10 * time.Minute
	cfg.Assistant.SessionIdleTTL = time.Hour
	cfg.Assistant.MaxChapterRunes = 1000
	return cfg
}

func geminiProfile() entity.ProviderProfile {
	return entity.ProviderProfile{Provider: entity.ProviderGemini, APIKey: "k", Model: "gemini-2.5-flash"}
}

func openAIProfile() entity.ProviderProfile {
	return entity.ProviderProfile{Provider: entity.ProviderOpenAI, APIKey: "k", BaseURL: "https://api.example.com/v1", Model: "m"}
}

// instantClock 立即触发
type instantClock struct{}

func (instantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}
