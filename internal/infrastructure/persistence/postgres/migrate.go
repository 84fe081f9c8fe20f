package postgres

import (
	"context"
	"fmt"

	"storyloom-ai-api/internal/domain/entity"
)

// AutoMigrate 创建本服务拥有的表
func (c *Client) AutoMigrate(ctx context.Context) error {
	if err := c.db.WithContext(ctx).AutoMigrate(
		&entity.UsageRecord{},
		&entity.CostLedgerEntry{},
		&entity.ConsistencyReportRecord{},
	); err != nil {
		return fmt.Errorf("failed to migrate ai tables: %w", err)
	}
	return nil
}

// AutoMigrateStoryTables 创建故事服务的只读表，仅用于本地开发与测试
func (c *Client) AutoMigrateStoryTables(ctx context.Context) error {
	if err := c.db.WithContext(ctx).AutoMigrate(
		&entity.Story{},
		&entity.Chapter{},
		&entity.Character{},
	); err != nil {
		return fmt.Errorf("failed to migrate story tables: %w", err)
	}
	return nil
}
