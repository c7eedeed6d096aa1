package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kalyekart-order-service/internal/service"
)

const (
	CtxUserID          = "userID"
	CtxUserName        = "userName"
	CtxUserPermissions = "userPermissions"
	CtxIsAdmin         = "isAdmin"
)

// TokenValidator resolves a bearer token to the account that owns it.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*service.AuthUser, error)
}

// AuthMiddleware validates the bearer token and stores the caller in the gin context.
func AuthMiddleware(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		user, err := auth.ValidateToken(c.Request.Context(), token)
		if err != nil {
			slog.DebugContext(c.Request.Context(), "token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(CtxUserID, user.ID)
		c.Set(CtxUserName, user.Name)
		c.Set(CtxUserPermissions, user.Permissions)
		c.Set(CtxIsAdmin, user.Admin())
		c.Next()
	}
}
