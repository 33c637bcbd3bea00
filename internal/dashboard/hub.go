// Package dashboard implements the read-only WebSocket broadcast hub
// spec.md §2's "read-only dashboard surfaces aggregate counts and queue
// depths" calls for, adapted from the teacher's JobWSHub/JobWSClient
// (internal/services/jobmanager/websocket.go) and generalized from job
// events to task lifecycle events.
package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/bobmcallan/mediaqueue/internal/common"
	"github.com/bobmcallan/mediaqueue/internal/models"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	clientSendBuf  = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans out TaskEvents to every connected dashboard client. Slow
// clients are evicted rather than allowed to block the broadcast.
type Hub struct {
	logger *common.Logger

	register   chan *client
	unregister chan *client
	broadcast  chan models.TaskEvent

	mu      sync.Mutex
	clients map[*client]bool
}

// NewHub constructs a Hub. Call Run in its own goroutine before serving
// any connections.
func NewHub(logger *common.Logger) *Hub {
	return &Hub{
		logger:     logger,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan models.TaskEvent, 256),
		clients:    make(map[*client]bool),
	}
}

// Publish implements task.EventPublisher / engine.EventPublisher.
func (h *Hub) Publish(event models.TaskEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn().Str("event_type", event.Type).Msg("Dashboard broadcast buffer full, dropping event")
	}
}

// Run processes register/unregister/broadcast for the process lifetime,
// matching the teacher's JobWSHub; it has no stop signal and never
// returns.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Error().Err(err).Msg("Failed to marshal dashboard event")
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					// slow client — evict rather than block the hub
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ServeWS upgrades an HTTP request to a WebSocket connection and
// registers the resulting client with the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, clientSendBuf)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// client is one dashboard WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// The dashboard is read-only; any inbound frame just resets the
		// deadline. We don't expect clients to send anything.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
