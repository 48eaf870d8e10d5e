// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"
)

// Provider AI 提供商类型
type Provider string

const (
	// ProviderGemini 厂商 SDK 路径，支持联网检索增强
	ProviderGemini Provider = "gemini"
	// ProviderOpenAI OpenAI 兼容的通用 HTTP 路径
	ProviderOpenAI Provider = "openai"
)

// ParseProvider 解析提供商名称，兼容常见别名；无法识别时返回空
func ParseProvider(s string) Provider {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gemini", "google", "vendora":
		return ProviderGemini
	case "openai", "openai-compatible", "openaicompatible", "openai_compatible":
		return ProviderOpenAI
	default:
		return ""
	}
}

// AISettings 调用方提供的 AI 设置，字段均可为空
type AISettings struct {
	Provider string `json:"provider,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
	Model    string `json:"model,omitempty"`
}

// ProviderProfile 解析后的提供商配置，核心层只读
type ProviderProfile struct {
	Provider Provider
	APIKey   string
	BaseURL  string
	Model    string
}

// Role 对话角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationMessage 对话日志中的一条消息
type ConversationMessage struct {
	Role       Role            `json:"role"`
	Content    string          `json:"content"`
	Directives []DirectiveKind `json:"directives,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// DirectiveKind 指令类型
type DirectiveKind string

const (
	// DirectiveCurrentSynopsis 本章剧情复盘
	DirectiveCurrentSynopsis DirectiveKind = "currentSynopsis"
	// DirectiveNextSynopsis 下一章方向总结
	DirectiveNextSynopsis DirectiveKind = "nextSynopsis"
)

// Valid 判断指令类型是否合法
func (k DirectiveKind) Valid() bool {
	return k == DirectiveCurrentSynopsis || k == DirectiveNextSynopsis
}

// InvocationRequest 单次调用请求
type InvocationRequest struct {
	Prompt    string
	System    string
	Augmented bool
	History   []ConversationMessage
}

// Source 联网检索引用
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// InvocationStatus 调用结果状态
type InvocationStatus string

const (
	StatusOK       InvocationStatus = "ok"
	StatusDegraded InvocationStatus = "degraded"
	StatusFailed   InvocationStatus = "failed"
)

// InvocationResult 调用结果，产生后不再修改
type InvocationResult struct {
	Text       string           `json:"text"`
	Sources    []Source         `json:"sources"`
	Status     InvocationStatus `json:"status"`
	Diagnostic string           `json:"diagnostic,omitempty"`
}

// Failed 是否为失败结果
func (r InvocationResult) Failed() bool {
	return r.Status == StatusFailed
}
