// Package llm 提供 AI 提供商客户端实现
package llm

import (
	"context"
	"strings"

	"z-novel-copilot/internal/domain/entity"
)

// Client 提供商调用契约，两种实现按 profile.Provider 选择
type Client interface {
	Invoke(ctx context.Context, req entity.InvocationRequest) (entity.InvocationResult, error)
}

// ClientFactory 根据提供商配置返回客户端
type ClientFactory interface {
	ClientFor(ctx context.Context, profile entity.ProviderProfile) (Client, error)
}

const (
	msgMissingVendorKey = "未配置 API Key：请在 AI 设置中填写密钥，或为服务配置 GEMINI_API_KEY 环境变量"
	msgMissingOpenAIKey = "未配置 API Key：OpenAI 兼容接口需要在 AI 设置中填写密钥"
	msgMissingBaseURL   = "OpenAI 兼容接口未配置 Base URL"
	msgMissingModel     = "未配置模型名称"
)

// Validate 在发起请求前校验配置，失败时不产生任何网络调用
func Validate(profile entity.ProviderProfile) error {
	switch profile.Provider {
	case entity.ProviderGemini:
		if strings.TrimSpace(profile.APIKey) == "" {
			return newConfigError(KindMissingCredential, profile.Provider, msgMissingVendorKey)
		}
		if strings.TrimSpace(profile.Model) == "" {
			return newConfigError(KindInvalidConfig, profile.Provider, msgMissingModel)
		}
	case entity.ProviderOpenAI:
		if strings.TrimSpace(profile.APIKey) == "" {
			return newConfigError(KindMissingCredential, profile.Provider, msgMissingOpenAIKey)
		}
		if NormalizeBaseURL(profile.BaseURL) == "" {
			return newConfigError(KindInvalidConfig, profile.Provider, msgMissingBaseURL)
		}
		if strings.TrimSpace(profile.Model) == "" {
			return newConfigError(KindInvalidConfig, profile.Provider, msgMissingModel)
		}
	default:
		return newConfigError(KindInvalidConfig, profile.Provider, "不支持的 AI 提供商："+string(profile.Provider))
	}
	return nil
}

func emptyResponse(provider entity.Provider) *ProviderError {
	return &ProviderError{Kind: KindEmptyResponse, Provider: provider, Payload: "AI 返回了空内容"}
}
