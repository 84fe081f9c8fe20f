// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storyloom-ai-api/internal/config"
	"storyloom-ai-api/internal/interfaces/http/handler"
	"storyloom-ai-api/internal/interfaces/http/middleware"
)

const rateLimitKeyPrefix = "ratelimit"

// Router HTTP 路由器
type Router struct {
	engine  *gin.Engine
	cfg     *config.Config
	health  *handler.HealthHandler
	ai      *handler.AIHandler
	limiter middleware.RateLimiter
}

// New 创建新的路由器
func New(cfg *config.Config, health *handler.HealthHandler, ai *handler.AIHandler, limiter middleware.RateLimiter) *Router {
	// 设置 Gin 模式
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:  gin.New(),
		cfg:     cfg,
		health:  health,
		ai:      ai,
		limiter: limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.AccessLog(middleware.DefaultSkipPaths...))

	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics(r.metricsPath()))
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	// 系统端点
	r.engine.GET("/health", r.health.Health)
	r.engine.GET("/ready", r.health.Ready)
	r.engine.GET("/live", r.health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.metricsPath(), gin.WrapH(promhttp.Handler()))
	}

	skipPaths := append([]string{r.metricsPath()}, middleware.DefaultSkipPaths...)
	api := r.engine.Group("",
		middleware.Auth(middleware.AuthConfig{
			Secret:    r.cfg.Security.JWT.Secret,
			Issuer:    r.cfg.Security.JWT.Issuer,
			SkipPaths: skipPaths,
			Enabled:   r.cfg.Security.JWT.Enabled,
		}),
		middleware.RateLimit(middleware.RateLimitConfig{
			Enabled:           r.cfg.Security.RateLimit.Enabled,
			RequestsPerSecond: r.cfg.Security.RateLimit.RequestsPerSecond,
			KeyPrefix:         rateLimitKeyPrefix,
		}, r.limiter),
	)

	RegisterAIRoutes(api, r.ai)
}

func (r *Router) metricsPath() string {
	if r.cfg.Observability.Metrics.Path == "" {
		return "/metrics"
	}
	return r.cfg.Observability.Metrics.Path
}
