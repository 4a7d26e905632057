package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/academvault/discussions/pkg/auth"
	"github.com/academvault/discussions/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by AuthMiddleware
const (
	ContextKeyUserID = "user_id"
	ContextKeyName   = "name"
	ContextKeyToken  = "token"
)

// RevocationChecker reports whether a token was logged out
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// AuthMiddleware validates bearer JWTs and injects the caller into context
func AuthMiddleware(jwtManager *auth.JWTManager, revoked RevocationChecker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Abort(c, http.StatusUnauthorized, "authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			response.Abort(c, http.StatusUnauthorized, "invalid authorization format, use: Bearer <token>")
			return
		}
		authenticate(c, jwtManager, revoked, logger, parts[1])
	}
}

// QueryTokenAuth authenticates with ?token=, for WebSocket upgrades where
// browsers cannot set headers
func QueryTokenAuth(jwtManager *auth.JWTManager, revoked RevocationChecker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "token required")
			return
		}
		authenticate(c, jwtManager, revoked, logger, token)
	}
}

func authenticate(c *gin.Context, jwtManager *auth.JWTManager, revoked RevocationChecker, logger *zap.Logger, token string) {
	claims, err := jwtManager.ValidateToken(token)
	if err != nil {
		response.Abort(c, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	isRevoked, err := revoked.IsRevoked(c.Request.Context(), token)
	if err != nil {
		// fail closed
		logger.Error("revocation lookup failed", zap.Error(err))
		response.Abort(c, http.StatusInternalServerError, "auth server error")
		return
	}
	if isRevoked {
		response.Abort(c, http.StatusUnauthorized, "token has been revoked")
		return
	}

	c.Set(ContextKeyUserID, claims.UserID)
	c.Set(ContextKeyName, claims.Name)
	c.Set(ContextKeyToken, token)
	c.Next()
}
