package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/atelier-ops/atelier-api/internal/middleware"
	"github.com/atelier-ops/atelier-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorIDFromContext returns the authenticated user's id for audit
// attribution, or nil for unauthenticated calls.
func actorIDFromContext(c *gin.Context) *string {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil
	}
	id := claims.UserID
	return &id
}
