//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"z-novel-copilot/internal/application/assistant"
	"z-novel-copilot/internal/config"
	"z-novel-copilot/internal/infrastructure/llm"
	"z-novel-copilot/internal/interfaces/http/handler"
	"z-novel-copilot/internal/interfaces/http/router"
)

// InitializeApp 初始化整个应用
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		DataSet,
		LLMSet,
		AssistantSet,
		RouterSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// DataSet 可选数据层：postgres 与 redis 不可用时对应功能降级
var DataSet = wire.NewSet(
	ProvidePostgresClientOptional,
	ProvideRedisClientOptional,
	ProvideChapterRepositoryOptional,
	ProvideTransactorOptional,
	ProvideSearchCacheOptional,
)

// LLMSet 提供商客户端
var LLMSet = wire.NewSet(
	llm.NewFactory,
	wire.Bind(new(llm.ClientFactory), new(*llm.Factory)),
)

// AssistantSet 助手应用服务
var AssistantSet = wire.NewSet(
	ProvidePacer,
	assistant.NewProfileResolver,
	assistant.NewInvoker,
	assistant.NewSessionStore,
	assistant.NewSearchService,
	assistant.NewReviewService,
	assistant.NewDirectiveService,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	handler.NewHealthHandler,
	handler.NewAssistantHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
