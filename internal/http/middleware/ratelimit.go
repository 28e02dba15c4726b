package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/haven-backend/internal/http/response"
	"github.com/yungbote/haven-backend/internal/modules/gate"
	"github.com/yungbote/haven-backend/internal/observability"
	"github.com/yungbote/haven-backend/internal/platform/apierr"
	"github.com/yungbote/haven-backend/internal/platform/ctxutil"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

// RateLimit applies one endpoint class per identity. Store failures admit
// the request.
func RateLimit(limiter *gate.RateLimiter, class gate.Class, m *observability.Metrics, log *logger.Logger) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		id, ok := ctxutil.GetIdentity(c.Request.Context())
		if !ok {
			id = ctxutil.Identity{ClientIP: c.ClientIP()}
		}
		d, err := limiter.CheckClass(c.Request.Context(), id.Key(), class)
		if err != nil {
			log.Warn("rate limit check failed, admitting", "class", class.Name, "error", err)
			c.Next()
			return
		}
		if !d.Allowed {
			m.IncGateRejection("rate_"+class.Name, "rate_limited")
			response.RespondError(c, apierr.RateExceeded("rate_limited", d.ResetAt, gate.ErrRateLimited))
			return
		}
		c.Next()
	}
}
