package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dm-service/internal/auth"
)

const (
	SessionKey = "session"
	UserIDKey  = "userID"
)

// SessionLookup resolves session tokens issued at sign-in.
type SessionLookup interface {
	Session(token string) (*auth.Session, error)
}

// AuthMiddleware requires a bearer session token and stores the session on
// the context.
func AuthMiddleware(sessions SessionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		session, err := sessions.Session(strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(SessionKey, session)
		c.Set(UserIDKey, session.UserID())
		c.Next()
	}
}

// SessionFrom returns the session stored by AuthMiddleware, or nil.
func SessionFrom(c *gin.Context) *auth.Session {
	if val, ok := c.Get(SessionKey); ok {
		if session, ok := val.(*auth.Session); ok {
			return session
		}
	}
	return nil
}
