package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dm-service/internal/middleware"
	"dm-service/internal/models"
	"dm-service/internal/services"
)

// ChatHandler manages direct message endpoints.
type ChatHandler struct {
	chats ChatService
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// ListChats returns the caller's chat headers, most recent first.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.chats.ListChats(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		writeError(c, err, "failed to load chats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// OpenChat returns the caller's header for the conversation with the user_id
// param. The chat is null until either side has sent a message.
func (h *ChatHandler) OpenChat(c *gin.Context) {
	header, err := h.chats.OpenChat(c.Request.Context(), middleware.SessionFrom(c), c.Param("user_id"))
	if err != nil {
		writeError(c, err, "failed to open chat")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": header})
}

// GetChatMessages returns the messages of one of the caller's conversations.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	session := middleware.SessionFrom(c)
	msgs, err := h.chats.ConversationMessages(c.Request.Context(), session, c.Param("header_id"))
	if err != nil {
		writeError(c, err, "failed to load messages")
		return
	}

	type messageResponse struct {
		models.Message
		Align services.Alignment `json:"align"`
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messageResponse{Message: m, Align: services.AlignmentFor(m, session.UserID())})
	}
	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// PostMessage sends a message. A blank message is accepted and ignored.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req struct {
		RecipientID string `json:"recipient_id" binding:"required"`
		Message     string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.chats.SendMessage(c.Request.Context(), middleware.SessionFrom(c), req.RecipientID, req.Message)
	if err != nil {
		writeError(c, err, "failed to send message")
		return
	}
	if msg == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead flags a received message as read.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	msg, err := h.chats.MarkRead(c.Request.Context(), middleware.SessionFrom(c), c.Param("message_id"))
	if err != nil {
		writeError(c, err, "failed to mark message read")
		return
	}
	c.JSON(http.StatusOK, msg)
}
