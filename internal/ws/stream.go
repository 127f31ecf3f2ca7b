package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"dm-service/internal/apperr"
	"dm-service/internal/auth"
	"dm-service/internal/observability"
)

// SessionLookup resolves session tokens.
type SessionLookup interface {
	Session(token string) (*auth.Session, error)
}

// subscribeFunc opens a store subscription for session and hands every
// snapshot, already wrapped as an outgoing event, to emit.
type subscribeFunc func(ctx context.Context, session *auth.Session, emit func(any)) (func(), error)

// streamer runs websocket streams of store snapshots. Each stream subscribes
// before upgrading, so a rejected subscription is a plain HTTP error, and
// keeps only the newest snapshot the client has not received yet.
type streamer struct {
	hub      *Hub
	sessions SessionLookup
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func newStreamer(hub *Hub, sessions SessionLookup, checkOrigin func(*http.Request) bool, logger zerolog.Logger) streamer {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return streamer{
		hub:      hub,
		sessions: sessions,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:   logger,
	}
}

// authenticate resolves the caller's session or answers 401.
func (s streamer) authenticate(c *gin.Context) (*auth.Session, bool) {
	session, err := s.sessions.Session(tokenFromRequest(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return nil, false
	}
	return session, true
}

func (s streamer) serve(c *gin.Context, session *auth.Session, kind StreamKind, room string, subscribe subscribeFunc) {
	ctx, span := otel.Tracer("dm-service/ws").Start(c.Request.Context(), "ws.handshake."+string(kind))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pending := make(chan any, 1)
	release, err := subscribe(streamCtx, session, func(event any) {
		select {
		case pending <- event:
		default:
			select {
			case <-pending:
			default:
			}
			pending <- event
		}
	})
	if err != nil {
		cancel()
		if errors.Is(err, apperr.ErrHeaderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}
		s.logger.Error().Err(err).Str("kind", string(kind)).Msg("websocket subscribe failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to subscribe"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		release()
		cancel()
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		Kind:        kind,
		Room:        room,
		UserID:      session.UserID(),
		DeviceID:    deviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, room, info)
	s.hub.AddClient(client)
	observability.IncWSActive(string(kind))
	publishWSEvent(streamCtx, info, "ws_connect", "")

	readerDone := make(chan string, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				reason := err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					publishWSEvent(streamCtx, info, "ws_error", reason)
				}
				readerDone <- reason
				return
			}
		}
	}()

	go func() {
		var closeReason string
		defer func() {
			release()
			cancel()
			s.hub.RemoveClient(client)
			observability.DecWSActive(string(kind))
			publishWSEvent(context.Background(), info, "ws_disconnect", closeReason)
			_ = conn.Close()
		}()
		for {
			select {
			case event := <-pending:
				if err := s.hub.Send(client, event); err != nil {
					closeReason = err.Error()
					return
				}
			case closeReason = <-readerDone:
				return
			case <-session.Done():
				closeReason = "session ended"
				return
			}
		}
	}()
}

func tokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return c.Query("token")
}
