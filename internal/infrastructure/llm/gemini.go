package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"z-novel-copilot/internal/domain/entity"
)

// GeminiClient 厂商 SDK 客户端，支持联网检索增强
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient 创建厂商 SDK 客户端；baseURL 为空时使用 SDK 默认地址
func NewGeminiClient(ctx context.Context, profile entity.ProviderProfile, baseURL string, httpClient *http.Client) (*GeminiClient, error) {
	if err := Validate(profile); err != nil {
		return nil, err
	}

	cc := &genai.ClientConfig{
		APIKey:     profile.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if base := strings.TrimSpace(profile.BaseURL); base != "" {
		baseURL = base
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, &ProviderError{
			Kind:     KindInvalidConfig,
			Provider: entity.ProviderGemini,
			Err:      err,
		}
	}
	return &GeminiClient{client: gc, model: profile.Model}, nil
}

// Invoke 调用 GenerateContent；Augmented 时启用 Google Search 工具
func (c *GeminiClient) Invoke(ctx context.Context, req entity.InvocationRequest) (entity.InvocationResult, error) {
	cfg := &genai.GenerateContentConfig{}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.Augmented {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	res, err := c.client.Models.GenerateContent(ctx, c.model, geminiContents(req), cfg)
	if err != nil {
		return entity.InvocationResult{}, classifyGeminiError(err)
	}

	text := geminiText(res)
	if strings.TrimSpace(text) == "" {
		return entity.InvocationResult{}, emptyResponse(entity.ProviderGemini)
	}

	return entity.InvocationResult{
		Text:    text,
		Sources: geminiSources(res),
		Status:  entity.StatusOK,
	}, nil
}

// geminiContents 历史消息在前，当前提示在最后
func geminiContents(req entity.InvocationRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := "user"
		if m.Role == entity.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return append(contents, &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.Prompt}},
	})
}

func geminiText(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range res.Candidates[0].Content.Parts {
		if p == nil || p.Thought || p.Text == "" {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// geminiSources 提取联网引用，无引用时返回空切片
func geminiSources(res *genai.GenerateContentResponse) []entity.Source {
	sources := []entity.Source{}
	if res == nil || len(res.Candidates) == 0 {
		return sources
	}
	gm := res.Candidates[0].GroundingMetadata
	if gm == nil {
		return sources
	}
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		title := chunk.Web.Title
		if title == "" {
			title = chunk.Web.URI
		}
		sources = append(sources, entity.Source{Title: title, URI: chunk.Web.URI})
	}
	return sources
}

type geminiErrorBody struct {
	Error genai.APIError `json:"error"`
}

func classifyGeminiError(err error) *ProviderError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		payload, mErr := json.Marshal(geminiErrorBody{Error: apiErr})
		if mErr != nil {
			payload = []byte(apiErr.Error())
		}
		return &ProviderError{
			Kind:       KindServiceError,
			Provider:   entity.ProviderGemini,
			StatusCode: apiErr.Code,
			Payload:    string(payload),
			Err:        err,
		}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return classifyGeminiError(*apiErrPtr)
	}
	return &ProviderError{
		Kind:     KindTransportFailure,
		Provider: entity.ProviderGemini,
		Err:      err,
	}
}
