package response

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/haven-backend/internal/platform/apierr"
)

type APIError struct {
	Message string     `json:"message"`
	Code    string     `json:"code,omitempty"`
	ResetAt *time.Time `json:"resetAt,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Envelope builds the localized error body for err.
func Envelope(err error, acceptLanguage string) (int, ErrorEnvelope) {
	ae := apierr.From(err)
	if ae == nil {
		ae = apierr.Internal(nil)
	}
	env := ErrorEnvelope{Error: APIError{
		Message: apierr.Message(ae.Code, acceptLanguage),
		Code:    ae.Code,
	}}
	if !ae.ResetAt.IsZero() {
		reset := ae.ResetAt.UTC()
		env.Error.ResetAt = &reset
	}
	return ae.Status, env
}

// RespondError writes err as a JSON error. 429s also carry Retry-After.
func RespondError(c *gin.Context, err error) {
	status, env := Envelope(err, c.GetHeader("Accept-Language"))
	if env.Error.ResetAt != nil {
		secs := int(math.Ceil(time.Until(*env.Error.ResetAt).Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
	}
	c.AbortWithStatusJSON(status, env)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
