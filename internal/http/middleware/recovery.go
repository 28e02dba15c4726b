package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/haven-backend/internal/http/response"
	"github.com/yungbote/haven-backend/internal/platform/apierr"
	"github.com/yungbote/haven-backend/internal/platform/ctxutil"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

const maxStack = 2048

// Recovery turns panics into internal_error responses.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			stack := debug.Stack()
			if len(stack) > maxStack {
				stack = stack[:maxStack]
			}
			fields := []interface{}{"panic", fmt.Sprint(p), "path", c.Request.URL.Path, "stack", string(stack)}
			if traceID := ctxutil.TraceID(c.Request.Context()); traceID != "" {
				fields = append(fields, "trace_id", traceID)
			}
			log.Error("panic recovered", fields...)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.RespondError(c, apierr.Internal(fmt.Errorf("panic: %v", p)))
		}()
		c.Next()
	}
}
