package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dm-service/internal/middleware"
)

// FriendHandler manages the caller's friend list.
type FriendHandler struct {
	friends FriendService
}

// NewFriendHandler builds a FriendHandler.
func NewFriendHandler(friends FriendService) *FriendHandler {
	return &FriendHandler{friends: friends}
}

// ListFriends returns the caller's friends.
func (h *FriendHandler) ListFriends(c *gin.Context) {
	friends, err := h.friends.ListFriends(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		writeError(c, err, "failed to load friends")
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// AddFriend adds the user matching an email or username.
func (h *FriendHandler) AddFriend(c *gin.Context) {
	var req struct {
		Query string `json:"query" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	friend, err := h.friends.AddFriend(c.Request.Context(), middleware.SessionFrom(c), req.Query)
	if err != nil {
		writeError(c, err, "failed to add friend")
		return
	}
	c.JSON(http.StatusCreated, friend)
}
