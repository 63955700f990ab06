// Package realtime delivers identity events to connected clients over
// websockets. The identity core only depends on the Publisher interface; the
// Hub is the in-process implementation backing /ws/notifications.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hipnode/hipnode/internal/logging"
)

// Event is the wire shape of an identity notification.
type Event struct {
	Type     string    `json:"type"`
	Address  string    `json:"address"`
	Username string    `json:"username,omitempty"`
	At       time.Time `json:"at"`
}

// EventUserCreated is emitted on a first-time login.
const EventUserCreated = "user.created"

// Publisher fans an event out to subscribers. Implementations must not block
// the caller on slow consumers.
type Publisher interface {
	Publish(event Event)
}

// NopPublisher discards events; used where no realtime delivery is wired.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

const (
	writeTimeout = 5 * time.Second

	// sendBuffer is the per-subscriber event backlog; a subscriber that
	// falls further behind is dropped.
	sendBuffer = 256
)

// Hub tracks websocket subscribers and broadcasts events to them. Each
// subscriber has a buffered send channel drained by a single writer
// goroutine, so concurrent Publish calls never write to a connection
// directly; websocket connections allow at most one writer at a time.
type Hub struct {
	upgrader websocket.Upgrader
	logger   logging.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan Event
}

func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger.With("module", "realtime"),
		clients: make(map[*websocket.Conn]chan Event),
	}
}

// Subscribe upgrades the request and registers the connection until the
// client closes it.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", "err", err)
		return
	}

	send := make(chan Event, sendBuffer)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()

	go h.writeLoop(conn, send)

	// Read loop exists only to observe the close; inbound messages are ignored.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// writeLoop is the sole writer for one connection. It exits when the send
// channel is closed by drop or Close, or when a write fails.
func (h *Hub) writeLoop(conn *websocket.Conn, send <-chan Event) {
	for event := range send {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Warn(context.Background(), "dropping subscriber", "err", err)
			h.drop(conn)
			return
		}
	}
}

// Publish queues the event for every subscriber. A subscriber whose backlog
// is full is dropped rather than blocking the caller.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, send := range h.clients {
		select {
		case send <- event:
		default:
			h.logger.Warn(context.Background(), "dropping slow subscriber")
			delete(h.clients, conn)
			close(send)
			_ = conn.Close()
		}
	}
}

// Close terminates all subscriber connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, send := range h.clients {
		delete(h.clients, conn)
		close(send)
		_ = conn.Close()
	}
}

// drop unregisters the connection. The send channel is closed under the same
// lock Publish sends under, so queued sends never hit a closed channel.
func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	send, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(send)
	}
	h.mu.Unlock()
	_ = conn.Close()
}
