package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"storyloom-ai-api/pkg/metrics"
)

// unmatchedRoute 未命中路由的请求统一归到一个标签，避免路径基数膨胀
const unmatchedRoute = "unmatched"

// Metrics 采集 HTTP 请求指标，skipPaths 中的路径（如 /metrics 自身）不计入
func Metrics(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method

		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		if c.Request.ContentLength > 0 {
			metrics.HTTPRequestSize.WithLabelValues(method, route).Observe(float64(c.Request.ContentLength))
		}

		start := time.Now()
		c.Next()

		metrics.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			metrics.HTTPResponseSize.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}
