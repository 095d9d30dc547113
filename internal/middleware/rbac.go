// rbac.go implements role-based authorization middleware.
//
// The portal has exactly three roles (Administrator, Supervisor, Entity), so
// authorization is a flat role check rather than a scope system. Roles are
// carried in the JWT: a role change takes effect when the user next logs in,
// which is acceptable because role assignments are a rare administrative act.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/db/models"
)

// RequireRole allows the request through only when the authenticated caller
// holds one of the given roles. Must be registered after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		roleVal, exists := c.Get(RoleKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		role, ok := roleVal.(string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Invalid role format",
			})
			return
		}

		if _, ok := allowed[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Missing required role",
			})
			return
		}

		c.Next()
	}
}

// RequireInstitutionAccess restricts Entity users to resources belonging to
// their own institution. The institution ID is read from the named route
// parameter and compared against the institution claim in the JWT.
// Administrators and Supervisors pass through unrestricted.
func RequireInstitutionAccess(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		if claims.Role != models.RoleEntity {
			c.Next()
			return
		}

		if claims.InstitutionID == "" || c.Param(param) != claims.InstitutionID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Access restricted to your own institution",
			})
			return
		}

		c.Next()
	}
}
