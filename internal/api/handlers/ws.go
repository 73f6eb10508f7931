package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/vnvalue/internal/session"
	"github.com/wonny/vnvalue/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 64
)

// Event is one message pushed to WebSocket clients
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SnapshotHub pushes session snapshots to connected WebSocket clients
// ⭐ SSOT: the only place the session is streamed to browsers
type SnapshotHub struct {
	session  SessionService
	upgrader websocket.Upgrader
	logger   *logger.Logger

	clients    map[*wsClient]bool
	broadcast  chan wsMessage
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	// seqMu orders Broadcast so the queue only ever holds rising versions
	seqMu       sync.Mutex
	lastVersion uint64
	queued      bool
}

type wsMessage struct {
	version uint64
	data    []byte
}

type wsClient struct {
	hub  *SnapshotHub
	conn *websocket.Conn
	send chan wsMessage

	// written by writePump only
	lastVersion uint64
	wrote       bool
}

// NewSnapshotHub creates a hub for the session. allowedOrigin "*" accepts
// every origin.
func NewSnapshotHub(svc SessionService, allowedOrigin string, log *logger.Logger) *SnapshotHub {
	h := &SnapshotHub{
		session:    svc,
		logger:     log,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan wsMessage, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowedOrigin == "*" || origin == "" || origin == allowedOrigin
		},
	}
	return h
}

// Run starts the event loop and subscribes to the session.
// Call it in its own goroutine; Stop ends it.
func (h *SnapshotHub) Run() {
	unsubscribe := h.session.Subscribe(func(s session.Snapshot) {
		h.Broadcast(s)
	})
	defer unsubscribe()

	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.WithField("clients", n).Debug("WebSocket client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.WithField("clients", n).Debug("WebSocket client disconnected")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow client
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends the event loop and disconnects every client
func (h *SnapshotHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast queues a snapshot for every client. Snapshots no newer than the
// last one queued are dropped, as is anything arriving while the queue is full.
func (h *SnapshotHub) Broadcast(s session.Snapshot) {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()

	if h.queued && s.Version <= h.lastVersion {
		h.logger.WithFields(map[string]interface{}{
			"version": s.Version,
			"last":    h.lastVersion,
		}).Debug("Dropping out-of-order snapshot")
		return
	}

	msg, err := encodeSnapshot(s)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to encode snapshot")
		return
	}

	select {
	case h.broadcast <- msg:
		h.lastVersion = s.Version
		h.queued = true
	default:
		h.logger.Warn("WebSocket broadcast queue full, dropping snapshot")
	}
}

// ClientCount returns the number of connected clients
func (h *SnapshotHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request, sends the current snapshot, then streams changes
// GET /ws
func (h *SnapshotHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan wsMessage, wsSendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	// A broadcast may reach the client first; writePump skips this if so.
	if msg, err := encodeSnapshot(h.session.Snapshot()); err == nil {
		h.mu.RLock()
		if h.clients[c] {
			select {
			case c.send <- msg:
			default:
			}
		}
		h.mu.RUnlock()
	}

	go c.writePump()
	go c.readPump()
}

func encodeSnapshot(s session.Snapshot) (wsMessage, error) {
	data, err := json.Marshal(Event{Type: "snapshot", Data: s})
	if err != nil {
		return wsMessage{}, err
	}
	return wsMessage{version: s.Version, data: data}, nil
}

// accept reports whether msg is newer than anything already written
func (c *wsClient) accept(msg wsMessage) bool {
	if c.wrote && msg.version <= c.lastVersion {
		return false
	}
	c.lastVersion = msg.version
	c.wrote = true
	return true
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.accept(msg) {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for close; clients never send commands over the socket
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
