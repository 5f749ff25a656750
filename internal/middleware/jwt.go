package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/guild-portal/backend/internal/auth"
	"github.com/guild-portal/backend/internal/models"
	"github.com/guild-portal/backend/pkg/response"
)

const (
	// ContextUserID is the key for the account ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for the account role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for the account email in gin context.
	ContextUserEmail = "user_email"
)

// JWT returns a middleware that validates the bearer token and sets account claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, jwtService)
		if !ok {
			response.Unauthorized(c, response.CodeUnauthenticated)
			c.Abort()
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalJWT sets account claims when a valid token is present and otherwise
// lets the request through anonymously.
func OptionalJWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := bearerClaims(c, jwtService); ok {
			setClaims(c, claims)
		}
		c.Next()
	}
}

// CurrentAccount returns the authenticated account ID and role, if any.
func CurrentAccount(c *gin.Context) (uuid.UUID, models.Role, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, "", false
	}
	id, _ := v.(uuid.UUID)
	role, _ := c.Get(ContextUserRole)
	r, _ := role.(models.Role)
	return id, r, id != uuid.Nil
}

func bearerClaims(c *gin.Context, jwtService *auth.JWTService) (*auth.Claims, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		// Browsers cannot set headers on websocket upgrades.
		if t := c.Query("token"); t != "" && c.GetHeader("Upgrade") != "" {
			header = "Bearer " + t
		}
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, false
	}
	claims, err := jwtService.Validate(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, false
	}
	return claims, true
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(ContextUserID, claims.AccountID)
	c.Set(ContextUserRole, claims.Role)
	c.Set(ContextUserEmail, claims.Email)
}
