package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	routingKey string
	event      any
	headers    map[string]string
	err        error
}

func (p *capturePublisher) PublishWithHeaders(_ context.Context, routingKey string, event any, headers map[string]string) error {
	p.routingKey, p.event, p.headers = routingKey, event, headers
	return p.err
}

func TestPublishEventWrapsPayload(t *testing.T) {
	pub := &capturePublisher{}
	SetPublisher(pub)
	defer SetPublisher(nil)

	ctx := WithRequestID(context.Background(), "req-1")
	require.NoError(t, PublishEvent(ctx, EventMessageSent, "message_sent", map[string]string{"id": "m1"}, HeadersFromContext(ctx)))

	assert.Equal(t, EventMessageSent, pub.routingKey)
	envelope, ok := pub.event.(EventEnvelope)
	require.True(t, ok)
	assert.Equal(t, "message_sent", envelope.EventName)
	assert.Equal(t, "domain_event", envelope.EventType)
	assert.Equal(t, map[string]string{"x-request-id": "req-1"}, pub.headers)
}

func TestPublishEventReturnsPublisherError(t *testing.T) {
	SetPublisher(&capturePublisher{err: errors.New("down")})
	defer SetPublisher(nil)
	assert.Error(t, PublishEvent(context.Background(), EventFriendAdded, "friend_added", nil, nil))
}

func TestPublishEventWithoutPublisher(t *testing.T) {
	SetPublisher(nil)
	assert.NoError(t, PublishEvent(context.Background(), EventFriendAdded, "friend_added", nil, nil))
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware())
	var seen string
	router.GET("/x", func(c *gin.Context) {
		seen = RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "given")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "given", seen)
	assert.Equal(t, "given", w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "given", seen)
}

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", IPFromRequest(req))

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", IPFromRequest(req))
}
