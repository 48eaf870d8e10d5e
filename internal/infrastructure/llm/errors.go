package llm

import (
	"errors"
	"fmt"

	"z-novel-copilot/internal/domain/entity"
	apperrors "z-novel-copilot/pkg/errors"
)

// ErrorKind 提供商调用失败分类
type ErrorKind string

const (
	// KindMissingCredential 无可用密钥，未发起网络请求
	KindMissingCredential ErrorKind = "missing_credential"
	// KindInvalidConfig 配置不完整（Base URL 或模型缺失），未发起网络请求
	KindInvalidConfig ErrorKind = "invalid_config"
	// KindTransportFailure 网络不可达、被拦截或响应格式错误
	KindTransportFailure ErrorKind = "transport_failure"
	// KindServiceError 服务端返回非 2xx 状态
	KindServiceError ErrorKind = "service_error"
	// KindEmptyResponse 响应格式正确但没有可用内容
	KindEmptyResponse ErrorKind = "empty_response"
)

// ProviderError 提供商调用错误，Payload 保存原始失败内容
type ProviderError struct {
	Kind       ErrorKind
	Provider   entity.Provider
	StatusCode int
	Payload    string
	Err        error
}

// Error 实现 error 接口
func (e *ProviderError) Error() string {
	msg := e.RawPayload()
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s (status %d): %s", e.Provider, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Kind, msg)
}

// Unwrap 返回底层错误
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// RawPayload 返回原始失败内容，供错误归一化使用
func (e *ProviderError) RawPayload() string {
	if e.Payload != "" {
		return e.Payload
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Retryable 是否可在降级路径上重试；配置类错误直接失败
func (e *ProviderError) Retryable() bool {
	return e.Kind != KindMissingCredential && e.Kind != KindInvalidConfig
}

// Retryable 报告失败后是否值得降级重试，非 ProviderError 视为可重试
func Retryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return err != nil
}

// AppError 转换为应用错误
func (e *ProviderError) AppError() *apperrors.AppError {
	var code apperrors.ErrorCode
	switch e.Kind {
	case KindMissingCredential:
		code = apperrors.CodeMissingCredential
	case KindInvalidConfig:
		code = apperrors.CodeInvalidConfig
	case KindTransportFailure:
		code = apperrors.CodeTransportFailure
	case KindServiceError:
		code = apperrors.CodeServiceError
	case KindEmptyResponse:
		code = apperrors.CodeEmptyResponse
	default:
		code = apperrors.CodeLLMProviderError
	}
	return apperrors.Wrap(e, code, string(e.Kind)).WithDetail(e.RawPayload())
}

// KindOf 返回错误分类，非 ProviderError 返回空
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func newConfigError(kind ErrorKind, provider entity.Provider, msg string) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, Payload: msg}
}
