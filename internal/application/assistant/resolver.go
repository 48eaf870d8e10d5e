// Package assistant 实现检索助手与主编审阅/对话助手的调用编排
package assistant

import (
	"os"
	"strings"

	"z-novel-copilot/internal/config"
	"z-novel-copilot/internal/domain/entity"
)

// fallbackKeyEnvs 厂商 SDK 兜底密钥的环境变量，按顺序查找
var fallbackKeyEnvs = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"}

// ProfileResolver 根据调用方设置解析提供商配置，不访问网络
type ProfileResolver struct {
	defaultProvider entity.Provider
	defaultModel    string
	fallbackKey     string
	getenv          func(string) string
}

// NewProfileResolver 创建配置解析器
func NewProfileResolver(cfg *config.Config) *ProfileResolver {
	provider := entity.ParseProvider(cfg.LLM.DefaultProvider)
	if provider == "" {
		provider = entity.ProviderGemini
	}
	return &ProfileResolver{
		defaultProvider: provider,
		defaultModel:    cfg.LLM.DefaultModel,
		fallbackKey:     strings.TrimSpace(cfg.LLM.FallbackAPIKey),
		getenv:          os.Getenv,
	}
}

// Resolve 返回具体的 ProviderProfile；密钥仍为空时由后续调用报告 MissingCredential
func (r *ProfileResolver) Resolve(settings *entity.AISettings) entity.ProviderProfile {
	profile := entity.ProviderProfile{Provider: r.defaultProvider}
	if settings != nil {
		if raw := strings.TrimSpace(settings.Provider); raw != "" {
			profile.Provider = entity.ParseProvider(raw)
			if profile.Provider == "" {
				profile.Provider = entity.Provider(raw)
			}
		}
		profile.APIKey = strings.TrimSpace(settings.APIKey)
		profile.BaseURL = strings.TrimSpace(settings.BaseURL)
		profile.Model = strings.TrimSpace(settings.Model)
	}

	if profile.Provider != entity.ProviderGemini {
		return profile
	}

	if profile.Model == "" {
		profile.Model = r.defaultModel
	}
	if profile.APIKey == "" {
		profile.APIKey = r.envKey()
	}
	return profile
}

func (r *ProfileResolver) envKey() string {
	if r.fallbackKey != "" {
		return r.fallbackKey
	}
	for _, name := range fallbackKeyEnvs {
		if v := strings.TrimSpace(r.getenv(name)); v != "" {
			return v
		}
	}
	return ""
}
