package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dm-service/internal/middleware"
	"dm-service/internal/telemetry"
)

// AuthHandler exchanges identity-provider tokens for sessions.
type AuthHandler struct {
	provider SessionProvider
	users    UserService
	audit    *telemetry.AuditEmitter
}

// NewAuthHandler builds an AuthHandler. audit may be nil.
func NewAuthHandler(provider SessionProvider, users UserService, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{provider: provider, users: users, audit: audit}
}

// SignIn verifies an ID token, records the user and returns a session token.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req struct {
		IDToken string `json:"id_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.provider.SignIn(c.Request.Context(), req.IDToken)
	if err != nil {
		writeError(c, err, "sign-in failed")
		return
	}

	user, err := h.users.RecordSignIn(c.Request.Context(), session.Identity)
	if err != nil {
		h.provider.SignOut(c.Request.Context(), session.Token)
		writeError(c, err, "failed to record user")
		return
	}

	userID := user.ID
	h.audit.Emit(c.Request.Context(), "INFO", "user signed in", requestIDFromContext(c), &userID)
	c.JSON(http.StatusOK, gin.H{
		"token":            session.Token,
		"user":             user,
		"profile_complete": h.users.ProfileComplete(user),
	})
}

// SignOut closes the caller's session.
func (h *AuthHandler) SignOut(c *gin.Context) {
	session := middleware.SessionFrom(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}
	h.provider.SignOut(c.Request.Context(), session.Token)

	userID := session.UserID()
	h.audit.Emit(c.Request.Context(), "INFO", "user signed out", requestIDFromContext(c), &userID)
	c.Status(http.StatusNoContent)
}
