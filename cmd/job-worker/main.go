// Package main 异步任务执行器入口（job-worker）：消费成本流水 Stream 并落库
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"storyloom-ai-api/internal/config"
	"storyloom-ai-api/internal/infrastructure/messaging"
	"storyloom-ai-api/internal/infrastructure/persistence/postgres"
	"storyloom-ai-api/internal/infrastructure/persistence/redis"
	"storyloom-ai-api/pkg/logger"
	"storyloom-ai-api/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName:    "job-worker",
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Env,
		Endpoint:       cfg.Observability.Tracing.Endpoint,
		SampleRate:     cfg.Observability.Tracing.SampleRate,
		Enabled:        cfg.Observability.Tracing.Enabled,
		Insecure:       cfg.Observability.Tracing.Insecure,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if cfg.AI.Ledger.Mode != config.LedgerModeStream {
		logger.Warn(ctx, "ai.ledger.mode is not stream, the api gateway writes the ledger directly",
			"mode", cfg.AI.Ledger.Mode)
	}

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	ledgerRepo := postgres.NewCostLedgerRepository(pgClient)

	streamCfg := cfg.Messaging.RedisStream
	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamAICost,
		Group:         messaging.ConsumerGroupLedgerWriter.WithPrefix(streamCfg.ConsumerGroupPrefix),
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  streamCfg.BlockTimeout,
		ClaimInterval: streamCfg.ClaimInterval,
		RetryLimit:    streamCfg.RetryLimit,
		Backoff:       messaging.BackoffFromConfig(streamCfg.RetryBackoff),
	})
	consumer.RegisterHandler(messaging.MessageTypeCostEntry, messaging.NewCostEntryHandler(ledgerRepo))

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}

	logger.Info(ctx, "job-worker started", "stream", string(messaging.StreamAICost))

	<-ctx.Done()
	logger.Info(context.Background(), "job-worker shutting down")
	consumer.Stop()
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
