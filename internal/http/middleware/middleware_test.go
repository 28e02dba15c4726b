package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/haven-backend/internal/data/repos"
	"github.com/yungbote/haven-backend/internal/http/response"
	"github.com/yungbote/haven-backend/internal/modules/gate"
	"github.com/yungbote/haven-backend/internal/platform/ctxutil"
	"github.com/yungbote/haven-backend/internal/platform/kvstore"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

const testSecret = "test-secret"

func signed(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func identityRouter(am *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(am.AttachIdentity())
	r.GET("/who", func(c *gin.Context) {
		id, _ := ctxutil.GetIdentity(c.Request.Context())
		c.String(http.StatusOK, id.Key())
	})
	r.GET("/mine", am.RequireUser(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestAttachIdentity(t *testing.T) {
	r := identityRouter(NewAuthMiddleware(logger.Nop(), testSecret))

	tests := []struct {
		name   string
		auth   string
		status int
		body   string
	}{
		{"anonymous", "", http.StatusOK, "ip:192.0.2.1"},
		{"valid token", "Bearer " + signed(t, "u-42", time.Now().Add(time.Hour)), http.StatusOK, "user:u-42"},
		{"expired token", "Bearer " + signed(t, "u-42", time.Now().Add(-time.Hour)), http.StatusUnauthorized, ""},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			req.RemoteAddr = "192.0.2.1:1234"
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestRequireUser(t *testing.T) {
	r := identityRouter(NewAuthMiddleware(logger.Nop(), testSecret))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mine", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/mine", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, "u-1", time.Now().Add(time.Hour)))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	limiter := gate.NewRateLimiter(repos.NewRateLimitRepo(kvstore.NewMemoryStore()), log)
	class := gate.Class{Name: "general", Window: time.Minute, Max: 3}

	r := gin.New()
	r.Use(NewAuthMiddleware(log, testSecret).AttachIdentity())
	r.Use(RateLimit(limiter, class, nil, log))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Accept-Language", "en-US")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var env response.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "rate_limited", env.Error.Code)
	assert.Contains(t, env.Error.Message, "too quickly")
	assert.NotNil(t, env.Error.ResetAt)
}

func TestAttachTraceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/t", func(c *gin.Context) {
		c.String(http.StatusOK, ctxutil.TraceID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set(HeaderTraceID, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Body.String())
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderTraceID))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/t", nil))
	assert.Len(t, rec.Body.String(), 36)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(logger.Nop()))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var env response.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "internal_error", env.Error.Code)
}
