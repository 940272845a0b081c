package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/mind-platform/mind-analytics-api/internal/models"
	appErrors "github.com/mind-platform/mind-analytics-api/pkg/errors"
	"github.com/mind-platform/mind-analytics-api/pkg/response"
)

// RequireRoles restricts a route to the listed roles. It must run after
// JWTAuth.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing identity"))
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(claims.Role)+" may not access this resource"))
			c.Abort()
			return
		}

		c.Next()
	}
}
