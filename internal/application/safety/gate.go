// Package safety 在付费生成前对用户输入做内容安全检查（fail-closed）
package safety

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storyloom-ai-api/internal/domain/service"
	apperrors "storyloom-ai-api/pkg/errors"
	"storyloom-ai-api/pkg/logger"
	"storyloom-ai-api/pkg/metrics"
)

const (
	verdictSafe        = "SAFE"
	unsafePrefix       = "UNSAFE:"
	reasonUnrecognized = "unrecognized classifier verdict"
)

// Verdict 安全判定结果
type Verdict struct {
	Safe   bool
	Reason string
}

// Gate 安全闸门，只有分类器严格返回 "SAFE" 才放行
type Gate struct {
	classifier service.Classifier
	timeout    time.Duration
}

func NewGate(classifier service.Classifier, timeout time.Duration) *Gate {
	return &Gate{
		classifier: classifier,
		timeout:    timeout,
	}
}

// Classify 调用分类器并解析判定。
// 分类器出错或超时返回 UpstreamFailure，不会被当作 Safe。
func (g *Gate) Classify(ctx context.Context, text string) (*Verdict, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	raw, err := g.classifier.Classify(ctx, text)
	if err != nil {
		metrics.SafetyVerdicts.WithLabelValues("error").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.ErrUpstreamFailure.WithDetail("safety classifier timed out").WithError(err)
		}
		return nil, apperrors.ErrUpstreamFailure.WithDetail("safety classifier failed").WithError(err)
	}

	v := ParseVerdict(raw)
	if v.Safe {
		metrics.SafetyVerdicts.WithLabelValues("safe").Inc()
	} else {
		metrics.SafetyVerdicts.WithLabelValues("unsafe").Inc()
		logger.Info(ctx, "content rejected by safety gate", "reason", v.Reason)
	}
	return v, nil
}

// Check 不安全时返回 SafetyRejection
func (g *Gate) Check(ctx context.Context, text string) error {
	v, err := g.Classify(ctx, text)
	if err != nil {
		return err
	}
	if !v.Safe {
		return apperrors.ErrSafetyRejected.WithDetail(v.Reason)
	}
	return nil
}

// ParseVerdict 解析分类器原始输出
func ParseVerdict(raw string) *Verdict {
	if raw == verdictSafe {
		return &Verdict{Safe: true}
	}
	if strings.HasPrefix(raw, unsafePrefix) {
		if reason := strings.TrimSpace(strings.TrimPrefix(raw, unsafePrefix)); reason != "" {
			return &Verdict{Reason: reason}
		}
	}
	return &Verdict{Reason: reasonUnrecognized}
}

// String 便于日志输出
func (v Verdict) String() string {
	if v.Safe {
		return verdictSafe
	}
	return fmt.Sprintf("UNSAFE(%s)", v.Reason)
}
