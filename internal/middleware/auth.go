package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sharewheels/internal/auth"
	"sharewheels/internal/domain"
)

// Context keys set by AuthMiddleware.
const (
	callerIDKey   = "caller_id"
	callerRoleKey = "caller_role"
)

// TokenParser verifies bearer tokens.
type TokenParser interface {
	ParseToken(tokenString string) (*auth.Claims, error)
}

// AuthMiddleware requires a valid bearer token and stores the caller's id
// and role in the gin context.
func AuthMiddleware(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bearer token required"})
			return
		}

		claims, err := parser.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(callerIDKey, claims.UserID)
		c.Set(callerRoleKey, claims.Role)
		c.Next()
	}
}

// CallerID returns the authenticated caller id, or "" on public routes.
func CallerID(c *gin.Context) string {
	return c.GetString(callerIDKey)
}

// CallerRole returns the authenticated caller role.
func CallerRole(c *gin.Context) domain.UserRole {
	role, _ := c.Get(callerRoleKey)
	r, _ := role.(domain.UserRole)
	return r
}
