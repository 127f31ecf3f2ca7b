package ws

import (
	"errors"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-service/internal/models"
)

type fakeConn struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	closed   bool
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	if messageType == websocket.TextMessage {
		f.writes = append(f.writes, data)
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestHubAddAndRemoveClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := NewClient(&fakeConn{}, "h1", ConnInfo{})

	hub.AddClient(client)
	assert.Equal(t, 1, hub.Clients("h1"))

	assert.True(t, hub.RemoveClient(client))
	assert.Equal(t, 0, hub.Clients("h1"))
	assert.Empty(t, hub.rooms)
	assert.False(t, hub.RemoveClient(client))
}

func TestHubSendWritesEvent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	conn := &fakeConn{}
	client := NewClient(conn, "h1", ConnInfo{})
	hub.AddClient(client)

	err := hub.Send(client, models.ChatEvent{Type: "snapshot", HeaderID: "h1", Messages: []models.Message{{ID: "m1", Text: "hi"}}})
	require.NoError(t, err)
	require.Len(t, conn.writes, 1)

	var event models.ChatEvent
	require.NoError(t, json.Unmarshal(conn.writes[0], &event))
	assert.Equal(t, "snapshot", event.Type)
	assert.Equal(t, "h1", event.HeaderID)
	require.Len(t, event.Messages, 1)
	assert.Equal(t, "hi", event.Messages[0].Text)
}

func TestHubSendDropsBrokenClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	conn := &fakeConn{writeErr: errors.New("broken pipe")}
	client := NewClient(conn, "h1", ConnInfo{})
	hub.AddClient(client)

	err := hub.Send(client, models.ChatEvent{Type: "snapshot", HeaderID: "h1"})
	assert.Error(t, err)
	assert.True(t, conn.closed)
	assert.Equal(t, 0, hub.Clients("h1"))
}

func TestHubCloseAll(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a, b := &fakeConn{}, &fakeConn{}
	hub.AddClient(NewClient(a, "h1", ConnInfo{}))
	hub.AddClient(NewClient(b, "h2", ConnInfo{}))

	hub.CloseAll()
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
