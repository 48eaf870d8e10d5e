package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-copilot/internal/config"
	"z-novel-copilot/internal/domain/entity"
	apperrors "z-novel-copilot/pkg/errors"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		profile entity.ProviderProfile
		want    ErrorKind
	}{
		{"gemini ok", entity.ProviderProfile{Provider: entity.ProviderGemini, APIKey: "k", Model: "m"}, ""},
		{"gemini no key", entity.ProviderProfile{Provider: entity.ProviderGemini, Model: "m"}, KindMissingCredential},
		{"gemini no model", entity.ProviderProfile{Provider: entity.ProviderGemini, APIKey: "k"}, KindInvalidConfig},
		{"openai ok", entity.ProviderProfile{Provider: entity.ProviderOpenAI, APIKey: "k", BaseURL: "https://x/v1", Model: "m"}, ""},
		{"openai no key", entity.ProviderProfile{Provider: entity.ProviderOpenAI, BaseURL: "https://x/v1", Model: "m"}, KindMissingCredential},
		{"openai no base", entity.ProviderProfile{Provider: entity.ProviderOpenAI, APIKey: "k", BaseURL: "/", Model: "m"}, KindInvalidConfig},
		{"openai no model", entity.ProviderProfile{Provider: entity.ProviderOpenAI, APIKey: "k", BaseURL: "https://x"}, KindInvalidConfig},
		{"unknown provider", entity.ProviderProfile{Provider: "claude", APIKey: "k"}, KindInvalidConfig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.profile)
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tc.want, KindOf(err))
		})
	}
}

func TestFactory_CachesClientsPerProfile(t *testing.T) {
	f := NewFactory(&config.Config{LLM: config.LLMConfig{HTTPTimeout: time.Second}})
	ctx := context.Background()

	p := entity.ProviderProfile{Provider: entity.ProviderOpenAI, APIKey: "k1", BaseURL: "https://x/v1", Model: "m"}
	a, err := f.ClientFor(ctx, p)
	require.NoError(t, err)
	b, err := f.ClientFor(ctx, p)
	require.NoError(t, err)
	assert.Same(t, a, b)

	p.APIKey = "k2"
	c, err := f.ClientFor(ctx, p)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestFactory_EvictsLeastRecentlyUsedClient(t *testing.T) {
	f := NewFactory(&config.Config{LLM: config.LLMConfig{HTTPTimeout: time.Second, ClientCacheSize: 2}})
	ctx := context.Background()

	profile := func(key string) entity.ProviderProfile {
		return entity.ProviderProfile{Provider: entity.ProviderOpenAI, APIKey: key, BaseURL: "https://x/v1", Model: "m"}
	}

	a, err := f.ClientFor(ctx, profile("k1"))
	require.NoError(t, err)
	_, err = f.ClientFor(ctx, profile("k2"))
	require.NoError(t, err)
	_, err = f.ClientFor(ctx, profile("k3"))
	require.NoError(t, err)
	assert.Equal(t, 2, f.clients.Len())

	again, err := f.ClientFor(ctx, profile("k1"))
	require.NoError(t, err)
	assert.NotSame(t, a, again)
	assert.Equal(t, 2, f.clients.Len())
}

func TestFactory_RejectsIncompleteProfile(t *testing.T) {
	f := NewFactory(&config.Config{})
	_, err := f.ClientFor(context.Background(), entity.ProviderProfile{Provider: entity.ProviderOpenAI, BaseURL: "https://x", Model: "m"})
	assert.Equal(t, KindMissingCredential, KindOf(err))
}

func TestProviderError_AppError(t *testing.T) {
	pe := &ProviderError{Kind: KindServiceError, Provider: entity.ProviderOpenAI, StatusCode: 500, Payload: "boom"}
	appErr := pe.AppError()
	assert.Equal(t, apperrors.CodeServiceError, appErr.Code)
	assert.Equal(t, "boom", appErr.Detail)

	var unwrapped *ProviderError
	assert.True(t, errors.As(appErr, &unwrapped))
	assert.False(t, (&ProviderError{Kind: KindInvalidConfig}).Retryable())
	assert.True(t, pe.Retryable())
	assert.True(t, Retryable(fmt.Errorf("wrapped: %w", pe)))
	assert.False(t, Retryable(newConfigError(KindMissingCredential, entity.ProviderGemini, "no key")))
	assert.True(t, Retryable(errors.New("plain")))
}
