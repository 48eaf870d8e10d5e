package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"z-novel-copilot/internal/config"
	"z-novel-copilot/internal/domain/entity"
	"z-novel-copilot/pkg/metrics"
)

const defaultClientCacheSize = 64

// Factory 按提供商配置创建并缓存客户端
// 密钥来自调用方设置，缓存按 LRU 限制数量
type Factory struct {
	httpClient    *http.Client
	vendorBaseURL string
	clients       *lru.Cache[string, Client]
	mu            sync.Mutex
}

// NewFactory 创建客户端工厂
func NewFactory(cfg *config.Config) *Factory {
	size := cfg.LLM.ClientCacheSize
	if size <= 0 {
		size = defaultClientCacheSize
	}
	// size 为正时 lru.New 不会失败
	clients, _ := lru.New[string, Client](size)
	return &Factory{
		httpClient:    &http.Client{Timeout: cfg.LLM.HTTPTimeout},
		vendorBaseURL: cfg.LLM.VendorBaseURL,
		clients:       clients,
	}
}

// ClientFor 返回 profile 对应的客户端；配置不完整时直接返回 ProviderError
func (f *Factory) ClientFor(ctx context.Context, profile entity.ProviderProfile) (Client, error) {
	if err := Validate(profile); err != nil {
		return nil, err
	}

	key := cacheKey(profile)

	if c, ok := f.clients.Get(key); ok {
		return c, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients.Get(key); ok {
		return c, nil
	}

	var inner Client
	var err error
	switch profile.Provider {
	case entity.ProviderGemini:
		inner, err = NewGeminiClient(ctx, profile, f.vendorBaseURL, f.httpClient)
	case entity.ProviderOpenAI:
		inner, err = NewOpenAIClient(profile, f.httpClient)
	}
	if err != nil {
		return nil, err
	}

	c := &instrumentedClient{inner: inner, provider: string(profile.Provider), model: profile.Model}
	f.clients.Add(key, c)
	return c, nil
}

// cacheKey 密钥只以摘要形式参与缓存键
func cacheKey(p entity.ProviderProfile) string {
	sum := sha256.Sum256([]byte(p.APIKey))
	return string(p.Provider) + "|" + p.BaseURL + "|" + p.Model + "|" + hex.EncodeToString(sum[:8])
}

// instrumentedClient 记录调用次数与耗时
type instrumentedClient struct {
	inner    Client
	provider string
	model    string
}

func (c *instrumentedClient) Invoke(ctx context.Context, req entity.InvocationRequest) (entity.InvocationResult, error) {
	start := time.Now()
	res, err := c.inner.Invoke(ctx, req)
	metrics.LLMCallDuration.WithLabelValues(c.provider, c.model).Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = string(KindOf(err))
		if status == "" {
			status = "error"
		}
	}
	metrics.LLMCallTotal.WithLabelValues(c.provider, c.model, status).Inc()
	return res, err
}
