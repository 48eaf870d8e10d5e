package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-copilot/internal/domain/entity"
)

type geminiCapture struct {
	Path string
	Body map[string]any
}

func newGeminiServer(t *testing.T, status int, body string) (*httptest.Server, *geminiCapture) {
	t.Helper()
	captured := &geminiCapture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		captured.Body = map[string]any{}
		_ = json.Unmarshal(raw, &captured.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func newTestGemini(t *testing.T, srv *httptest.Server) *GeminiClient {
	t.Helper()
	c, err := NewGeminiClient(context.Background(), entity.ProviderProfile{
		Provider: entity.ProviderGemini,
		APIKey:   "g-key",
		Model:    "gemini-test",
	}, srv.URL+"/", srv.Client())
	require.NoError(t, err)
	return c
}

const groundedBody = `{
  "candidates": [{
    "content": {"role": "model", "parts": [{"text": "检索结果"}, {"text": "：第二段"}]},
    "groundingMetadata": {
      "groundingChunks": [
        {"web": {"title": "维基百科", "uri": "https://example.com/a"}},
        {"web": {"uri": "https://example.com/b"}},
        {"retrievedContext": {"uri": "ignored"}}
      ]
    }
  }]
}`

func TestGeminiClient_AugmentedWithSystemInstruction(t *testing.T) {
	srv, captured := newGeminiServer(t, http.StatusOK, groundedBody)
	client := newTestGemini(t, srv)

	res, err := client.Invoke(context.Background(), entity.InvocationRequest{
		Prompt:    "唐代长安的坊市制度",
		System:    "只用中文回答",
		Augmented: true,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(captured.Path, "/models/gemini-test:generateContent"), captured.Path)
	assert.Contains(t, captured.Body, "tools")
	assert.Contains(t, captured.Body, "systemInstruction")

	contents, ok := captured.Body["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 1)
	raw, _ := json.Marshal(contents[0])
	assert.NotContains(t, string(raw), "只用中文回答")

	assert.Equal(t, "检索结果：第二段", res.Text)
	assert.Equal(t, []entity.Source{
		{Title: "维基百科", URI: "https://example.com/a"},
		{Title: "https://example.com/b", URI: "https://example.com/b"},
	}, res.Sources)
}

func TestGeminiClient_PlainCallHasNoTools(t *testing.T) {
	srv, captured := newGeminiServer(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"答复"}]}}]}`)
	client := newTestGemini(t, srv)

	res, err := client.Invoke(context.Background(), entity.InvocationRequest{
		Prompt: "问题",
		History: []entity.ConversationMessage{
			{Role: entity.RoleUser, Content: "早先的问题"},
			{Role: entity.RoleAssistant, Content: "早先的回答"},
		},
	})
	require.NoError(t, err)

	assert.NotContains(t, captured.Body, "tools")
	assert.NotContains(t, captured.Body, "systemInstruction")
	contents, ok := captured.Body["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 3)
	assert.Equal(t, "model", contents[1].(map[string]any)["role"])

	assert.Equal(t, "答复", res.Text)
	assert.NotNil(t, res.Sources)
	assert.Empty(t, res.Sources)
}

func TestGeminiClient_ServiceErrorPayload(t *testing.T) {
	srv, _ := newGeminiServer(t, http.StatusForbidden,
		`{"error":{"code":403,"message":"API key not valid. Please pass a valid API key.","status":"PERMISSION_DENIED"}}`)
	client := newTestGemini(t, srv)

	_, err := client.Invoke(context.Background(), entity.InvocationRequest{Prompt: "q"})
	require.Error(t, err)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindServiceError, pe.Kind)
	assert.Equal(t, http.StatusForbidden, pe.StatusCode)
	assert.Contains(t, pe.RawPayload(), `{"error"`)
	assert.Contains(t, pe.RawPayload(), "API key not valid")
}

func TestGeminiClient_EmptyCandidates(t *testing.T) {
	srv, _ := newGeminiServer(t, http.StatusOK, `{"candidates":[]}`)
	client := newTestGemini(t, srv)

	_, err := client.Invoke(context.Background(), entity.InvocationRequest{Prompt: "q"})
	assert.Equal(t, KindEmptyResponse, KindOf(err))
}

func TestNewGeminiClient_MissingKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), entity.ProviderProfile{
		Provider: entity.ProviderGemini,
		Model:    "gemini-test",
	}, "", nil)
	assert.Equal(t, KindMissingCredential, KindOf(err))
}
