package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shift-staffing-client/auth"
)

// Context keys set by the auth middlewares.
const (
	ContextUserID  = "user_id"
	ContextNurseID = "nurse_id"
)

// AuthMiddleware validates bearer tokens and sets the caller identity.
func AuthMiddleware(issuer *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			abortUnauthorized(c, "Token must be in format: Bearer <token>")
			return
		}

		claims, err := issuer.Validate(tokenString)
		if err != nil {
			abortUnauthorized(c, "Token is invalid or expired")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextNurseID, claims.NurseID)
		c.Next()
	}
}

// WebSocketAuthMiddleware validates the token passed as a query parameter,
// since browsers cannot set headers on websocket upgrades.
func WebSocketAuthMiddleware(issuer *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			tokenString = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if tokenString == "" {
			abortUnauthorized(c, "Please provide a valid token in query parameters")
			return
		}

		claims, err := issuer.Validate(tokenString)
		if err != nil {
			abortUnauthorized(c, "Token is invalid or expired")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextNurseID, claims.NurseID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"message": message,
	})
}
