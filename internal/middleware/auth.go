package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"treebio-api/internal/auth"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
)

func tokenFromRequest(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	// Fallback for WebSocket/browser where custom headers cannot be set: allow token in query param
	return c.Query("token")
}

// JWTAuthMiddleware validates JWT token in Authorization header
func JWTAuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is required",
			})
			return
		}
		if !authenticate(c, tokens, tokenString) {
			return
		}
		c.Next()
	}
}

// OptionalJWTAuth lets anonymous requests through but still rejects a
// token that is present and invalid.
func OptionalJWTAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := tokenFromRequest(c); tokenString != "" {
			if !authenticate(c, tokens, tokenString) {
				return
			}
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, tokens *auth.TokenManager, tokenString string) bool {
	claims, err := tokens.ValidateToken(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid or expired token",
		})
		return false
	}

	// Store user info in context for use in handlers
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextEmail, claims.Email)
	return true
}
