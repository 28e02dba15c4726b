package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/haven-backend/internal/http/response"
	"github.com/yungbote/haven-backend/internal/platform/apierr"
	"github.com/yungbote/haven-backend/internal/platform/ctxutil"
	"github.com/yungbote/haven-backend/internal/platform/logger"
)

var errUnauthorized = errors.New("missing or invalid token")

// AuthMiddleware resolves who a request belongs to. A valid bearer token
// yields its subject as the user id; anonymous callers are keyed by IP.
type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewAuthMiddleware(log *logger.Logger, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("Middleware", "AuthMiddleware"), secret: []byte(jwtSecret)}
}

// AttachIdentity never rejects anonymous requests, only bad tokens.
func (am *AuthMiddleware) AttachIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ctxutil.Identity{ClientIP: c.ClientIP()}
		if tokenString := extractToken(c); tokenString != "" {
			sub, err := am.subject(tokenString)
			if err != nil {
				am.log.Debug("token rejected", "error", err, "client_ip", id.ClientIP)
				response.RespondError(c, apierr.New(401, "unauthorized", errUnauthorized))
				return
			}
			id.UserID = sub
		}
		c.Request = c.Request.WithContext(ctxutil.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequireUser rejects requests without an authenticated user id.
func (am *AuthMiddleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := ctxutil.GetIdentity(c.Request.Context())
		if !ok || id.UserID == "" {
			response.RespondError(c, apierr.New(401, "unauthorized", errUnauthorized))
			return
		}
		c.Next()
	}
}

func (am *AuthMiddleware) subject(tokenString string) (string, error) {
	if len(am.secret) == 0 {
		return "", fmt.Errorf("no signing secret configured")
	}
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return am.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if !tok.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("invalid token subject")
	}
	return strings.TrimSpace(claims.Subject), nil
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
