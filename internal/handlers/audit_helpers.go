package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dm-service/internal/middleware"
	"dm-service/internal/observability"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(observability.RequestIDKey); id != "" {
		return id
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(observability.RequestIDKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if userID := c.GetString(middleware.UserIDKey); userID != "" {
		return &userID
	}
	if header := c.GetHeader("X-User-ID"); header != "" {
		return &header
	}
	return nil
}
