// Package ws streams scan lifecycle events to WebSocket subscribers.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/picker/pkg/logger"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPingInterval = 30 * time.Second

	// clientBuffer bounds queued events per subscriber. Slow readers
	// miss progress updates rather than stall the scan.
	clientBuffer = 16
)

// Event types pushed over /ws/scan.
const (
	EventScanStarted   = "scan_started"
	EventScanProgress  = "scan_progress"
	EventScanCompleted = "scan_completed"
	EventScanFailed    = "scan_failed"
)

// Event is one scan lifecycle update pushed to subscribers.
type Event struct {
	Type  string `json:"type"`
	Date  string `json:"date,omitempty"`
	Done  int    `json:"done,omitempty"`
	Total int    `json:"total,omitempty"`
	RunID int64  `json:"run_id,omitempty"`
	Picks int    `json:"picks,omitempty"`
	Error string `json:"error,omitempty"`
}

// Hub fans scan events out to connected WebSocket clients.
type Hub struct {
	logger   *logger.Logger
	upgrader websocket.Upgrader

	clients map[*wsClient]bool
	mu      sync.Mutex
}

// NewHub creates a new event hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger: log.WithField("module", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API serves operators on a private network.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]bool),
	}
}

type wsClient struct {
	conn *websocket.Conn
	send chan Event
}

// HandleWS upgrades the connection and streams events until the client
// disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan Event, clientBuffer),
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.WithField("clients", count).Debug("WebSocket client connected")

	go h.writeLoop(client)
	h.readLoop(client)
}

// Broadcast queues an event for every connected client. Clients that
// cannot keep up miss events instead of blocking the caller.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- event:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.drop(client)
	}
}

// readLoop consumes inbound frames until the peer goes away. The stream
// is one-directional, so inbound payloads are discarded.
func (h *Hub) readLoop(client *wsClient) {
	defer h.drop(client)

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(client *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteJSON(event); err != nil {
				h.drop(client)
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(client)
				return
			}
		}
	}
}

// drop unregisters a client. Safe to call from both loops; only the
// first call closes the send channel.
func (h *Hub) drop(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()

	client.conn.Close()
}
