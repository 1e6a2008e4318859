package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/jobshop-api/internal/middleware"
	"github.com/noah-isme/jobshop-api/internal/models"
)

// actorID names who submitted a request. Empty when auth is disabled.
func actorID(c *gin.Context) string {
	raw, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return ""
	}
	if claims, ok := raw.(*models.JWTClaims); ok && claims != nil {
		return claims.UserID
	}
	return ""
}
