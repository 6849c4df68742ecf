package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"parley/internal/pkg/ctxutil"
)

// Logger 请求日志中间件
// 健康检查只在失败时记录
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		if status < 400 && (path == "/health" || path == "/ready") {
			return
		}

		event := log.Info()
		if status >= 400 {
			event = log.Warn()
		}
		if status >= 500 {
			event = log.Error()
		}

		// 查询参数可能带 WebSocket 令牌，不写入日志
		if c.Query("token") != "" {
			query = "token=[redacted]"
		}

		userID, _ := ctxutil.GetUserID(c.Request.Context())
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("route", c.FullPath()).
			Str("query", query).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString("request_id")).
			Str("user_id", userID).
			Int("body_size", c.Writer.Size()).
			Msg("HTTP request")
	}
}
