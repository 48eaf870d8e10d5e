package assistant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"z-novel-copilot/internal/config"
	"z-novel-copilot/internal/domain/entity"
	"z-novel-copilot/internal/infrastructure/llm"
	"z-novel-copilot/internal/infrastructure/persistence/redis"
	apperrors "z-novel-copilot/pkg/errors"
	"z-novel-copilot/pkg/logger"
	"z-novel-copilot/pkg/metrics"
)

// ResultCache 检索结果缓存
type ResultCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// SearchService 检索助手
type SearchService struct {
	invoker  *Invoker
	resolver *ProfileResolver
	cache    ResultCache
	ttl      time.Duration
	group    singleflight.Group
}

// NewSearchService 创建检索服务，cache 可为 nil
func NewSearchService(cfg *config.Config, invoker *Invoker, resolver *ProfileResolver, cache ResultCache) *SearchService {
	return &SearchService{
		invoker:  invoker,
		resolver: resolver,
		cache:    cache,
		ttl:      cfg.Assistant.SearchCacheTTL,
	}
}

// Search 执行一次联网检索；参数错误或调用方取消时返回 error，调用失败体现在结果中
func (s *SearchService) Search(ctx context.Context, query string, settings *entity.AISettings) (entity.InvocationResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return entity.InvocationResult{}, apperrors.New(apperrors.CodeInvalidParam, "query is required")
	}

	profile := s.resolver.Resolve(settings)
	req := entity.InvocationRequest{
		Prompt:    query,
		System:    SearchSystemPrompt,
		Augmented: true,
	}

	if s.cache == nil || llm.Validate(profile) != nil {
		return s.invoker.Run(ctx, profile, req, SurfaceSearch), nil
	}

	key := searchCacheKey(profile, query)
	var cached entity.InvocationResult
	err := s.cache.Get(ctx, key, &cached)
	switch {
	case err == nil:
		metrics.AssistantSearchCacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	case errors.Is(err, redis.ErrCacheMiss):
		metrics.AssistantSearchCacheTotal.WithLabelValues("miss").Inc()
	default:
		metrics.AssistantSearchCacheTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "search cache read failed", "error", err.Error())
	}

	// 合并后的调用不随首个调用方取消，各调用方只在自己的 ctx 上等待
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		result := s.invoker.Run(flightCtx, profile, req, SurfaceSearch)
		if result.Status == entity.StatusOK && s.ttl > 0 {
			if err := s.cache.Set(flightCtx, key, result, s.ttl); err != nil {
				logger.Warn(flightCtx, "search cache write failed", "error", err.Error())
			}
		}
		return result, nil
	})

	select {
	case r := <-ch:
		return r.Val.(entity.InvocationResult), nil
	case <-ctx.Done():
		return entity.InvocationResult{}, ctx.Err()
	}
}

func searchCacheKey(p entity.ProviderProfile, query string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		string(p.Provider),
		llm.NormalizeBaseURL(p.BaseURL),
		p.Model,
		query,
	}, "|")))
	return "search:" + hex.EncodeToString(sum[:])
}
