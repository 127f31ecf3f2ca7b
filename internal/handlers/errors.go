package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"dm-service/internal/apperr"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var authErr *apperr.AuthFailedError
	var headerErr *apperr.HeaderWriteError
	switch {
	case errors.As(err, &authErr), errors.Is(err, apperr.ErrUserNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrAuthNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrCounterpartNotFound),
		errors.Is(err, apperr.ErrHeaderNotFound),
		errors.Is(err, apperr.ErrMessageNotFound),
		errors.Is(err, apperr.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrUsernameTaken),
		errors.Is(err, apperr.ErrEmailTaken),
		errors.Is(err, apperr.ErrAlreadyFriends):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrSelfConversation),
		errors.Is(err, apperr.ErrSelfFriend),
		errors.Is(err, apperr.ErrInvalidUsername):
		return http.StatusUnprocessableEntity
	case errors.As(err, &headerErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the mapped status. Client errors carry the error
// text; server errors carry fallback and are logged.
func writeError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Error().Err(err).Str("route", c.FullPath()).Str("request_id", requestIDFromContext(c)).Msg(fallback)
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
