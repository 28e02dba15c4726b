package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/haven-backend/internal/platform/ctxutil"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

// RequestLogger logs one line per request. Identity values are hashed by the
// logger.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		ctx := c.Request.Context()

		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if corr, ok := ctxutil.GetCorrelation(ctx); ok {
			fields = append(fields, "trace_id", corr.TraceID, "request_id", corr.RequestID)
		}
		if id, ok := ctxutil.GetIdentity(ctx); ok {
			if id.UserID != "" {
				fields = append(fields, "user_id", id.UserID)
			}
			fields = append(fields, "client_ip", id.ClientIP)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
