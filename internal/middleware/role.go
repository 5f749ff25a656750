package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/guild-portal/backend/internal/models"
	"github.com/guild-portal/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		_, role, ok := CurrentAccount(c)
		if !ok {
			response.Unauthorized(c, response.CodeUnauthenticated)
			c.Abort()
			return
		}
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, response.CodeForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
