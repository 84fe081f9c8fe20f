package aiservice

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"storyloom-ai-api/internal/application/quota"
	"storyloom-ai-api/internal/domain/entity"
	apperrors "storyloom-ai-api/pkg/errors"
	"storyloom-ai-api/pkg/logger"
)

// Usage 返回用户当日调用次数与成本
func (s *Service) Usage(ctx context.Context, userID string) (*UsageResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	day, count, err := s.limiter.Usage(ctx, userID)
	if err != nil {
		return nil, apperrors.ErrQuotaStore.WithError(err)
	}

	limits, lowest := s.kindLimits()
	out := &UsageResult{
		Date:   day,
		Count:  count,
		Limit:  lowest,
		Limits: limits,
		Cost:   decimal.Zero,
	}

	if s.ledger != nil {
		start, end := quota.DayBounds(s.now())
		cost, err := s.ledger.SumByUser(ctx, userID, start, end)
		if err != nil {
			logger.Warn(ctx, "failed to sum cost ledger", "error", err)
		} else {
			out.Cost = cost
		}
	}
	return out, nil
}

// DailyLimit 返回 kind 的每日上限，供接口展示
func (s *Service) DailyLimit(kind entity.AIKind) int {
	return s.dailyLimit(kind)
}

// kindLimits 各类型的生效上限及其中的最小值
func (s *Service) kindLimits() (map[string]int, int) {
	limits := make(map[string]int, len(entity.AllKinds))
	lowest := 0
	for i, kind := range entity.AllKinds {
		limit := s.dailyLimit(kind)
		limits[string(kind)] = limit
		if i == 0 || limit < lowest {
			lowest = limit
		}
	}
	return limits, lowest
}
