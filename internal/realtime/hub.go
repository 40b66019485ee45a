package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/retroboardhq/retroboard/pkg/logger"
	"github.com/retroboardhq/retroboard/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MiB

	defaultBufferSize = 64
)

// Entry maps a live connection to the identity it carries. Entries exist only
// to route disconnect-time cleanup; session occupancy always comes from room
// membership.
type Entry struct {
	UserID    string
	SessionID string
}

// Hooks are the callbacks the hub invokes for connection lifecycle and
// inbound frames. OnLeave runs after the registry entry and room membership
// for the connection are gone.
type Hooks struct {
	OnJoin  func(sessionID, userID string)
	OnLeave func(sessionID, userID string)
	OnFrame func(client *Client, sessionID, userID string, frame Frame)
}

// Hub owns the websocket rooms: one per session id, plus the connection
// registry. It is the transport the board engine broadcasts through.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	registry map[string]Entry

	hooks    Hooks
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs a hub. Bind must be called before Serve.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Client]struct{}),
		registry: make(map[string]Entry),
		log:      logger.WithModule("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Allow same-origin requests and explicit localhost development.
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				requestHost := hostWithoutPort(r.Host)
				return originHost == requestHost || isLoopback(originHost)
			},
		},
	}
}

// Bind attaches the lifecycle and frame callbacks. It exists because the
// board engine needs the hub for broadcasting while the hub needs the engine
// for presence, so one of the two is wired late.
func (h *Hub) Bind(hooks Hooks) {
	h.hooks = hooks
}

// Serve upgrades the HTTP connection to a websocket scoped to one session.
// It blocks until the connection closes.
func (h *Hub) Serve(userID, sessionID string, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		id:        uuid.NewString(),
		hub:       h,
		socket:    conn,
		userID:    userID,
		sessionID: sessionID,
		send:      make(chan Envelope, defaultBufferSize),
		done:      make(chan struct{}),
	}

	h.register(client)
	if h.hooks.OnJoin != nil {
		h.hooks.OnJoin(sessionID, userID)
	}

	go client.writeLoop()
	client.readLoop()
}

// Broadcast fans an envelope out to every connection in the session's room.
// The room is snapshotted before any enqueue: a backpressured client gets
// disconnected during delivery, and its unregistration needs the write lock
// this method must therefore not be holding.
func (h *Hub) Broadcast(sessionID, event string, data any) {
	h.mu.RLock()
	room := h.rooms[sessionID]
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	envelope := Envelope{Event: event, SessionID: sessionID, Data: data}
	for _, client := range clients {
		h.enqueue(client, envelope)
	}
}

// Occupancy reports how many live connections the session's room holds.
func (h *Hub) Occupancy(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// ActiveSessions lists the session ids that currently have live connections.
func (h *Hub) ActiveSessions() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sessions := make([]string, 0, len(h.rooms))
	for sessionID := range h.rooms {
		sessions = append(sessions, sessionID)
	}
	return sessions
}

// Lookup returns the registry entry for a connection id.
func (h *Hub) Lookup(connectionID string) (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entry, ok := h.registry[connectionID]
	return entry, ok
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[client.sessionID]
	if room == nil {
		room = make(map[*Client]struct{})
		h.rooms[client.sessionID] = room
	}
	room[client] = struct{}{}
	h.registry[client.id] = Entry{UserID: client.userID, SessionID: client.sessionID}
	metrics.ConnectedClients.Inc()
}

// unregister removes the registry entry first, so a concurrent reconnect
// never observes a stale identity mapping, then empties the room.
func (h *Hub) unregister(client *Client) {
	h.mu.Lock()

	_, known := h.registry[client.id]
	if known {
		delete(h.registry, client.id)
	}

	if room, ok := h.rooms[client.sessionID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, client.sessionID)
		}
	}
	h.mu.Unlock()

	if !known {
		return
	}
	metrics.ConnectedClients.Dec()

	if h.hooks.OnLeave != nil {
		h.hooks.OnLeave(client.sessionID, client.userID)
	}
}

func (h *Hub) enqueue(client *Client, envelope Envelope) {
	select {
	case <-client.done:
	case client.send <- envelope:
	default:
		h.log.Warn("dropping backpressured client",
			zap.String("user_id", client.userID),
			zap.String("session_id", client.sessionID))
		client.close()
	}
}

// Client is one live websocket connection bound to a single session.
type Client struct {
	id        string
	hub       *Hub
	socket    *websocket.Conn
	userID    string
	sessionID string
	send      chan Envelope
	done      chan struct{}
	once      sync.Once
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// Send queues an envelope for this connection only, used by query relays
// that answer a single requester.
func (c *Client) Send(event string, data any) {
	c.hub.enqueue(c, Envelope{Event: event, SessionID: c.sessionID, Data: data})
}

func (c *Client) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("unexpected close",
					zap.String("user_id", c.userID),
					zap.Error(err))
			}
			break
		}

		if len(payload) == 0 {
			continue
		}

		var frame Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.hub.log.Warn("invalid frame",
				zap.String("user_id", c.userID),
				zap.Error(err))
			continue
		}

		action := strings.ToLower(strings.TrimSpace(frame.Action))
		if action == ActionPing {
			c.Send("pong", nil)
			continue
		}
		frame.Action = action

		if c.hub.hooks.OnFrame != nil {
			c.hub.hooks.OnFrame(c, c.sessionID, c.userID, frame)
		}
	}
}

func (c *Client) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case envelope := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(envelope); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close signals shutdown via the done channel rather than closing send, so
// a broadcast racing with teardown can never panic on a closed channel.
func (c *Client) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.done)
		if c.socket != nil {
			_ = c.socket.Close()
		}
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
