package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"library-backend/internal/shared/auth"
	"library-backend/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	userEmailKey = "userEmail"
	userNameKey  = "userName"
	userRoleKey  = "userRole"
)

// RoleReviewer marks users allowed to work the review queue.
const RoleReviewer = "reviewer"

// Auth validates JWTs and stores identity in context. Secret selection,
// including the non-production fallback, lives in the auth package.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := auth.VerifyJWT(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(userIDKey, claims.Subject)
		if claims.Email != "" {
			c.Set(userEmailKey, claims.Email)
		}
		if claims.Name != "" {
			c.Set(userNameKey, claims.Name)
		}
		if claims.Role != "" {
			c.Set(userRoleKey, claims.Role)
		}
		c.Next()
	}
}

// RequireReviewer rejects requests whose token lacks the reviewer role.
func RequireReviewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserRoleFromContext(c) != RoleReviewer {
			respond.Error(c, http.StatusForbidden, "forbidden", "reviewer role required", nil)
			return
		}
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userEmailKey)
	if email, ok := val.(string); ok {
		return email
	}
	return ""
}

// UserNameFromContext fetches the user name set by the auth middleware.
func UserNameFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userNameKey)
	if name, ok := val.(string); ok {
		return name
	}
	return ""
}

// UserRoleFromContext fetches the user role set by the auth middleware.
func UserRoleFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userRoleKey)
	if role, ok := val.(string); ok {
		return role
	}
	return ""
}
