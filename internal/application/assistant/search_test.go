package assistant

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-copilot/internal/domain/entity"
	"z-novel-copilot/internal/infrastructure/llm"
	"z-novel-copilot/internal/infrastructure/persistence/redis"
	apperrors "z-novel-copilot/pkg/errors"
)

// memoryCache 以 JSON 形式保存，行为与 redis 缓存一致
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return redis.ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	c.ttls[key] = ttl
	return nil
}

func newTestSearch(client *fakeClient, cache ResultCache) *SearchService {
	cfg := testConfig()
	return NewSearchService(cfg, NewInvoker(&fakeFactory{client: client}), NewProfileResolver(cfg), cache)
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	client := &fakeClient{respond: replyWith("x")}
	_, err := newTestSearch(client, nil).Search(context.Background(), "  ", nil)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInvalidParam, appErr.Code)
	assert.Empty(t, client.calls())
}

func TestSearch_AugmentedWithSystemPrompt(t *testing.T) {
	client := &fakeClient{respond: replyWith("答案")}
	res, err := newTestSearch(client, nil).Search(context.Background(), " 宋代驿站 ", nil)
	require.NoError(t, err)

	assert.Equal(t, entity.StatusOK, res.Status)
	calls := client.calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Augmented)
	assert.Equal(t, "宋代驿站", calls[0].Prompt)
	assert.Equal(t, SearchSystemPrompt, calls[0].System)
}

func TestSearch_CachesOnlySuccessfulResults(t *testing.T) {
	cache := newMemoryCache()
	client := &fakeClient{respond: replyWith("答案")}
	svc := newTestSearch(client, cache)

	first, err := svc.Search(context.Background(), "q", nil)
	require.NoError(t, err)
	second, err := svc.Search(context.Background(), "q", nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, client.calls(), 1)
	for _, ttl := range cache.ttls {
		assert.Equal(t, 10*time.Minute, ttl)
	}

	failing := &fakeClient{respond: failWith(&llm.ProviderError{Kind: llm.KindServiceError, StatusCode: 500, Payload: "boom"})}
	svc = newTestSearch(failing, cache)
	_, err = svc.Search(context.Background(), "other", nil)
	require.NoError(t, err)
	_, err = svc.Search(context.Background(), "other", nil)
	require.NoError(t, err)
	assert.Len(t, failing.calls(), 4)
	assert.Len(t, cache.data, 1)
}

func TestSearch_CacheKeyedByProfile(t *testing.T) {
	p := geminiProfile()
	q := openAIProfile()
	assert.NotEqual(t, searchCacheKey(p, "q"), searchCacheKey(q, "q"))

	q2 := q
	q2.BaseURL = q.BaseURL + "/chat/completions/"
	assert.Equal(t, searchCacheKey(q, "q"), searchCacheKey(q2, "q"))
}

func TestSearch_InvalidProfileBypassesCache(t *testing.T) {
	cache := newMemoryCache()
	client := &fakeClient{respond: replyWith("x")}
	res, err := newTestSearch(client, cache).Search(context.Background(), "q",
		&entity.AISettings{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)

	assert.Equal(t, entity.StatusFailed, res.Status)
	assert.Empty(t, cache.data)
	assert.Empty(t, client.calls())
}

func TestSearch_CoalescedCallerSurvivesFirstCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	client := &fakeClient{respond: func(req entity.InvocationRequest) (entity.InvocationResult, error) {
		if req.Augmented {
			once.Do(func() { close(started) })
			<-release
			return entity.InvocationResult{}, &llm.ProviderError{Kind: llm.KindTransportFailure, Payload: "fetch failed"}
		}
		return entity.InvocationResult{Text: "长安实行夜禁"}, nil
	}}
	svc := newTestSearch(client, newMemoryCache())

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.Search(ctxA, "唐代宵禁", nil)
		errA <- err
	}()
	<-started

	resB := make(chan entity.InvocationResult, 1)
	go func() {
		res, err := svc.Search(context.Background(), "唐代宵禁", nil)
		assert.NoError(t, err)
		resB <- res
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)
	close(release)

	res := <-resB
	assert.Equal(t, entity.StatusDegraded, res.Status)
	assert.Contains(t, res.Text, "长安实行夜禁")

	var augmented int
	for _, c := range client.calls() {
		if c.Augmented {
			augmented++
		}
	}
	assert.Equal(t, 1, augmented)
	assert.Len(t, client.calls(), 2)
}
