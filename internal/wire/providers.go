package wire

import (
	"context"

	"z-novel-copilot/internal/application/assistant"
	"z-novel-copilot/internal/application/assistant/pacer"
	"z-novel-copilot/internal/config"
	"z-novel-copilot/internal/domain/repository"
	"z-novel-copilot/internal/infrastructure/persistence/postgres"
	"z-novel-copilot/internal/infrastructure/persistence/redis"
	"z-novel-copilot/internal/interfaces/http/router"
	"z-novel-copilot/pkg/logger"
)

// searchCachePrefix 检索缓存键前缀
const searchCachePrefix = "copilot"

// App 应用依赖容器
type App struct {
	Router   *router.Router
	Sessions *assistant.SessionStore
}

// ProvidePostgresClientOptional 章节库未启用或不可达时返回 nil，不阻塞启动
func ProvidePostgresClientOptional(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	if !cfg.Database.Postgres.Enabled {
		return nil, func() {}, nil
	}
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Warn(ctx, "postgres not available, directive application disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	if cfg.Database.Postgres.AutoMigrate {
		if err := client.AutoMigrate(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClientOptional 缓存未启用或不可达时返回 nil
func ProvideRedisClientOptional(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Warn(ctx, "redis not available, search cache disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

func ProvideChapterRepositoryOptional(client *postgres.Client) repository.ChapterRepository {
	if client == nil {
		return nil
	}
	return postgres.NewChapterRepository(client)
}

func ProvideTransactorOptional(client *postgres.Client) repository.Transactor {
	if client == nil {
		return nil
	}
	return postgres.NewTxManager(client)
}

func ProvideSearchCacheOptional(client *redis.Client) assistant.ResultCache {
	if client == nil {
		return nil
	}
	return redis.NewCache(client, searchCachePrefix)
}

// ProvidePacer 使用系统时钟的投递器
func ProvidePacer() *pacer.Pacer {
	return pacer.New(pacer.RealClock())
}
