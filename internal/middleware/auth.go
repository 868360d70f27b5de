// Package middleware provides Gin HTTP middleware for authentication,
// authorization, rate limiting, security headers, and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → Admission → Audit → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB work.
// Auth populates the user identity; admission and role checks read from that
// context. Audit logging runs last so only authorized mutations are recorded.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/member-portal/member-portal/internal/auth"
	"github.com/member-portal/member-portal/internal/db/repositories"
	"github.com/member-portal/member-portal/internal/orgcontext"
)

// Context keys set by AuthMiddleware
const (
	UserKey   = "user"
	UserIDKey = "user_id"
	EmailKey  = "email"
)

// AuthMiddleware validates the Bearer session token and loads the user
func AuthMiddleware(userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		user, err := userRepo.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load user",
			})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User not found",
			})
			return
		}

		c.Set(UserKey, user)
		c.Set(UserIDKey, user.ID)
		c.Set(EmailKey, user.Email)

		c.Next()
	}
}

// CurrentIdentity returns the authenticated identity from the request context.
// The second return is false when AuthMiddleware has not run or did not
// authenticate the request.
func CurrentIdentity(c *gin.Context) (orgcontext.Identity, bool) {
	idVal, ok := c.Get(UserIDKey)
	if !ok {
		return orgcontext.Identity{}, false
	}
	id, ok := idVal.(string)
	if !ok || id == "" {
		return orgcontext.Identity{}, false
	}
	return orgcontext.Identity{ID: id, Email: c.GetString(EmailKey)}, true
}
