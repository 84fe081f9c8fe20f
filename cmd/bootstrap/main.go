// Package main 初始化数据库表结构
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"storyloom-ai-api/internal/config"
	"storyloom-ai-api/internal/wire"
	"storyloom-ai-api/pkg/logger"
)

// storyTablesEnv 为 true 时额外创建故事表（线上由主站维护，仅本地开发使用）
const storyTablesEnv = "BOOTSTRAP_STORY_TABLES"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	ctx := context.Background()
	layer, cleanup, err := wire.InitializeBootstrap(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to connect postgres", err)
	}
	defer cleanup()

	if err := layer.PgClient.AutoMigrate(ctx); err != nil {
		logger.Fatal(ctx, "failed to migrate ai tables", err)
	}
	logger.Info(ctx, "ai tables migrated")

	if withStory, _ := strconv.ParseBool(os.Getenv(storyTablesEnv)); withStory {
		if err := layer.PgClient.AutoMigrateStoryTables(ctx); err != nil {
			logger.Fatal(ctx, "failed to migrate story tables", err)
		}
		logger.Info(ctx, "story tables migrated")
	}
}
