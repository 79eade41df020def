// Package websocket streams server logs to admin clients in real time
package websocket

import (
	"bytes"
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// LogHub fans every log line out to connected websocket clients.
// It implements io.Writer so it can sit behind the slog handler.
type LogHub struct {
	clients map[*Client]struct{}

	// Buffered, drop-if-full: logging must never block request handling
	broadcast chan []byte

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	secretKey string
	upgrader  websocket.Upgrader
}

// Client represents a connected WebSocket client
type Client struct {
	hub  *LogHub
	conn *websocket.Conn
	send chan []byte
}

const (
	broadcastBufferSize = 256
	clientBufferSize    = 64

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// NewLogHub creates a hub; clients must present secretKey as ?secret_key=
func NewLogHub(secretKey string) *LogHub {
	return &LogHub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		secretKey:  secretKey,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Admin port only; access is gated by the secret key
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run handles registration and broadcasting until ctx is done (call as goroutine)
func (h *LogHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			slog.Info("[LogHub] Client connected", "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			slog.Info("[LogHub] Client disconnected", "total", total)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				// Slow clients miss messages instead of stalling the hub
				select {
				case client.send <- message:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Write queues one log line for broadcast, dropping it if the queue is full
func (h *LogHub) Write(p []byte) (n int, err error) {
	msg := make([]byte, len(p))
	copy(msg, p)
	msg = bytes.TrimRight(msg, "\n\r")

	select {
	case h.broadcast <- msg:
	default:
	}

	return len(p), nil
}

// ServeWS upgrades an authorized request to a log stream
// Route: /ws/logs?secret_key=ADMIN_SECRET
func (h *LogHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r.URL.Query().Get("secret_key")) {
		http.Error(w, "Unauthorized: Invalid or missing secret_key", http.StatusUnauthorized)
		slog.Warn("[LogHub] Unauthorized WebSocket attempt", "remote_addr", r.RemoteAddr)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[LogHub] WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientBufferSize),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *LogHub) authorized(key string) bool {
	if key == "" || h.secretKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(h.secretKey)) == 1
}

// ClientCount returns the current number of connected clients
func (h *LogHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump drains the connection so pongs and close frames are processed
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("[LogHub] Read error", "error", err)
			}
			break
		}
	}
}

// writePump sends queued lines and keeps the connection alive with pings
func (c *Client) writePump() {
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

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Batch whatever else is already queued into the same frame
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
