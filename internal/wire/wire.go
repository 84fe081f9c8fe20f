//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"storyloom-ai-api/internal/config"
	"storyloom-ai-api/internal/interfaces/http/router"
)

// InitializeBootstrap 仅初始化 PostgreSQL（用于 bootstrap）
func InitializeBootstrap(ctx context.Context, cfg *config.Config) (*BootstrapLayer, func(), error) {
	wire.Build(
		ProvidePostgresClient,
		wire.Struct(new(BootstrapLayer), "*"),
	)
	return nil, nil, nil
}

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		PostgresSet,
		RedisSet,
		MessagingSet,
		ProviderSet,
		AISet,
		RouterSet,
	)
	return nil, nil, nil
}
