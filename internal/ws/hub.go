package ws

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one websocket connection registered in one room.
type Client struct {
	conn Conn
	room string
	info ConnInfo
	mu   sync.Mutex
}

// NewClient wraps conn for room.
func NewClient(conn Conn, room string, info ConnInfo) *Client {
	return &Client{conn: conn, room: room, info: info}
}

// Hub tracks the open websocket clients of every room.
type Hub struct {
	rooms  map[string]map[*Client]struct{}
	mu     sync.RWMutex
	logger zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		logger: logger,
	}
}

// AddClient registers a client with its room.
func (h *Hub) AddClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[client.room]; !ok {
		h.rooms[client.room] = make(map[*Client]struct{})
	}
	h.rooms[client.room][client] = struct{}{}
}

// RemoveClient unregisters a client. It reports whether the client was registered.
func (h *Hub) RemoveClient(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[client.room]
	if !ok {
		return false
	}
	if _, ok := clients[client]; !ok {
		return false
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
	return true
}

// Clients returns the number of clients in room.
func (h *Hub) Clients(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Stats counts open clients by stream kind.
func (h *Hub) Stats() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	stats := map[string]int{
		string(StreamConversation): 0,
		string(StreamChats):        0,
		string(StreamFriends):      0,
	}
	for _, room := range h.rooms {
		for client := range room {
			stats[string(client.info.Kind)]++
		}
	}
	return stats
}

// Send writes event as JSON to one client. A client that cannot be written
// to is closed and removed.
func (h *Hub) Send(client *Client, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	client.mu.Lock()
	err = client.conn.WriteMessage(websocket.TextMessage, payload)
	client.mu.Unlock()
	if err != nil {
		logger := client.info.logger(h.logger)
		logger.Warn().Err(err).Msg("websocket write error")
		_ = client.conn.Close()
		if h.RemoveClient(client) {
			publishWSEvent(context.Background(), client.info, "ws_error", err.Error())
		}
		return err
	}
	return nil
}

// CloseAll closes every client connection.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var clients []*Client
	for _, room := range h.rooms {
		for client := range room {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.mu.Lock()
		_ = client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		client.mu.Unlock()
		_ = client.conn.Close()
	}
}
