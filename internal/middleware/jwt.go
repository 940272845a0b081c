package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mind-platform/mind-analytics-api/internal/models"
	"github.com/mind-platform/mind-analytics-api/internal/service"
	appErrors "github.com/mind-platform/mind-analytics-api/pkg/errors"
	"github.com/mind-platform/mind-analytics-api/pkg/response"
)

// ContextUserKey is the gin context key the authenticated claims live under.
const ContextUserKey = "currentUser"

// JWTAuth validates the bearer token and stores the claims on the request
// context. Requests without a valid token never reach a handler.
func JWTAuth(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authorization header must be a bearer token"))
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// CurrentClaims returns the authenticated claims from the request context.
func CurrentClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}
