package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"z-novel-copilot/internal/domain/entity"
)

const (
	chatCompletionsSuffix = "/chat/completions"
	maxErrorBodyBytes     = 64 << 10
)

// OpenAIClient OpenAI 兼容的通用 chat-completions 客户端
type OpenAIClient struct {
	client  *openai.Client
	model   string
	baseURL string
}

// NormalizeBaseURL 去除末尾斜杠及多余的 /chat/completions 后缀
func NormalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	for strings.HasSuffix(base, chatCompletionsSuffix) {
		base = strings.TrimRight(strings.TrimSuffix(base, chatCompletionsSuffix), "/")
	}
	return base
}

// NewOpenAIClient 创建通用 HTTP 客户端
func NewOpenAIClient(profile entity.ProviderProfile, httpClient *http.Client) (*OpenAIClient, error) {
	if err := Validate(profile); err != nil {
		return nil, err
	}

	base := NormalizeBaseURL(profile.BaseURL)
	cfg := openai.DefaultConfig(profile.APIKey)
	cfg.BaseURL = base
	cfg.HTTPClient = withErrorBodyCapture(httpClient)

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   profile.Model,
		baseURL: base,
	}, nil
}

// Endpoint 返回实际请求地址
func (c *OpenAIClient) Endpoint() string {
	return c.baseURL + chatCompletionsSuffix
}

// Invoke 发起一次 chat-completions 请求；该协议没有联网引用，Sources 恒为空
func (c *OpenAIClient) Invoke(ctx context.Context, req entity.InvocationRequest) (entity.InvocationResult, error) {
	captured := &errorBody{}
	ctx = context.WithValue(ctx, errorBodyKey{}, captured)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: openAIMessages(req),
	})
	if err != nil {
		return entity.InvocationResult{}, classifyOpenAIError(err, captured.raw)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return entity.InvocationResult{}, emptyResponse(entity.ProviderOpenAI)
	}

	return entity.InvocationResult{
		Text:    resp.Choices[0].Message.Content,
		Sources: []entity.Source{},
		Status:  entity.StatusOK,
	}, nil
}

// openAIMessages system 在前，随后历史消息，最后为当前用户消息
func openAIMessages(req entity.InvocationRequest) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if strings.TrimSpace(req.System) != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.History {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := openai.ChatMessageRoleUser
		if m.Role == entity.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})
}

// classifyOpenAIError 非 2xx 响应保留原始响应体，供错误归一化提取服务端消息
// raw 为传输层截获的响应体；为空时才退回 go-openai 解析后的结构
func classifyOpenAIError(err error, raw []byte) *ProviderError {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		payload := string(reqErr.Body)
		if strings.TrimSpace(payload) == "" {
			payload = reqErr.HTTPStatus
		}
		return &ProviderError{
			Kind:       KindServiceError,
			Provider:   entity.ProviderOpenAI,
			StatusCode: reqErr.HTTPStatusCode,
			Payload:    payload,
			Err:        err,
		}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		payload := raw
		if len(bytes.TrimSpace(payload)) == 0 {
			var mErr error
			if payload, mErr = json.Marshal(openai.ErrorResponse{Error: apiErr}); mErr != nil {
				payload = []byte(apiErr.Message)
			}
		}
		return &ProviderError{
			Kind:       KindServiceError,
			Provider:   entity.ProviderOpenAI,
			StatusCode: apiErr.HTTPStatusCode,
			Payload:    string(payload),
			Err:        err,
		}
	}

	return &ProviderError{
		Kind:     KindTransportFailure,
		Provider: entity.ProviderOpenAI,
		Err:      err,
	}
}

type errorBodyKey struct{}

// errorBody 单次请求的非 2xx 原始响应体
type errorBody struct {
	raw []byte
}

// errorBodyTransport 截获非 2xx 响应体后原样交回 go-openai 解析
type errorBodyTransport struct {
	base http.RoundTripper
}

func withErrorBodyCapture(httpClient *http.Client) *http.Client {
	wrapped := &http.Client{}
	if httpClient != nil {
		*wrapped = *httpClient
	}
	base := wrapped.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped.Transport = &errorBodyTransport{base: base}
	return wrapped
}

func (t *errorBodyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode < http.StatusBadRequest {
		return resp, err
	}
	holder, ok := req.Context().Value(errorBodyKey{}).(*errorBody)
	if !ok {
		return resp, nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	_ = resp.Body.Close()
	holder.raw = raw
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	return resp, nil
}
