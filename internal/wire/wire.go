//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"rag-chat-api/internal/config"
)

// InitializeApp 初始化整个应用（路由器与后台消费者）
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		VectorSet,
		IngestionSet,
		ChatSet,
		RouterSet,
		WorkerSet,
		AppSet,
	)
	return nil, nil, nil
}
