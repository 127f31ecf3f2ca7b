package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dm-service/internal/middleware"
)

// UserHandler serves the caller's own profile.
type UserHandler struct {
	users UserService
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Me returns the caller's user record.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.Me(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		writeError(c, err, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "profile_complete": h.users.ProfileComplete(user)})
}

// CompleteProfile sets the caller's username and chat display name.
func (h *UserHandler) CompleteProfile(c *gin.Context) {
	var req struct {
		Username        string `json:"username" binding:"required"`
		ChatDisplayName string `json:"chat_display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.CompleteProfile(c.Request.Context(), middleware.SessionFrom(c), req.Username, req.ChatDisplayName)
	if err != nil {
		writeError(c, err, "failed to update profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "profile_complete": h.users.ProfileComplete(user)})
}
