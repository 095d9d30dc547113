// Package middleware provides Gin HTTP middleware for authentication,
// authorization, rate limiting, security headers, metrics, and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → Role → Audit → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to absorb brute-force attempts before any
// token parsing or store lookups. Auth populates the caller identity; the role
// middleware reads from that context. Audit logging runs last so the recorded
// status reflects what the handler actually returned.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/auth"
	"github.com/supervision-portal/supervision-portal/internal/store"
)

// Context keys set by AuthMiddleware. Handlers read these instead of
// re-parsing the Authorization header.
const (
	ClaimsKey        = "claims"
	UserIDKey        = "user_id"
	UsernameKey      = "username"
	RoleKey          = "role"
	InstitutionIDKey = "institution_id"
)

// AuthMiddleware validates the Bearer JWT on every request and loads the
// account behind it. The store lookup exists so that deactivating a user
// takes effect immediately instead of when their token expires.
func AuthMiddleware(st store.Store) gin.HandlerFunc {
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
				"error": "Invalid or expired token",
			})
			return
		}

		user, err := st.GetUser(c.Request.Context(), claims.UserID)
		if err != nil {
			if err == store.ErrNotFound {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "User not found",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load user",
			})
			return
		}
		if user == nil || !user.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Account is deactivated",
			})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Set(RoleKey, claims.Role)
		if claims.InstitutionID != "" {
			c.Set(InstitutionIDKey, claims.InstitutionID)
		}

		c.Next()
	}
}

// ClaimsFromContext returns the validated claims set by AuthMiddleware,
// or nil when the request did not pass through it.
func ClaimsFromContext(c *gin.Context) *auth.Claims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, ok := v.(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}
