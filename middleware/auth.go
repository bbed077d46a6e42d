package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"waterlog/auth"
)

const claimsKey = "claims"

type TokenParser interface {
	ParseToken(token string) (*auth.Claims, error)
}

// Auth requires a Bearer token. A missing token is 401, an invalid one 403.
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization token"})
			return
		}
		claims, err := parser.ParseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Set("user_id", claims.ID)
		c.Next()
	}
}

// RequireRole lets only callers with role through. Use after Auth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil || claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "only " + role + " users can perform this action"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the claims set by Auth, or nil.
func CurrentUser(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

func extractToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
