package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jcopacetic/lumi/internal/logger"
)

// Application close codes sent before dropping a socket.
const (
	CloseUnauthorized = 4001
	CloseForbidden    = 4003
)

// InboundRateLimit caps client frames per connection per minute.
const InboundRateLimit = 100

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Hub fans bus messages out to WebSocket connections joined to partner
// groups. A connection may belong to one group at a time.
type Hub struct {
	log *logger.Logger

	mu     sync.RWMutex
	groups map[string]map[*Conn]struct{}
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:    log.With("service", "WSHub"),
		groups: make(map[string]map[*Conn]struct{}),
	}
}

func (h *Hub) Join(group string, c *Conn) {
	if group == "" || c == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.groups[group]
	if !ok {
		conns = make(map[*Conn]struct{})
		h.groups[group] = conns
	}
	conns[c] = struct{}{}
	c.group = group
}

func (h *Hub) Leave(c *Conn) {
	if c == nil || c.group == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.groups[c.group]
	if !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.groups, c.group)
	}
}

// Broadcast marshals payload once and queues it on every connection in the
// group. Connections with a full send buffer are skipped, not blocked on.
func (h *Hub) Broadcast(group string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.Warn("ws broadcast marshal failed", "group", group, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.groups[group] {
		select {
		case c.send <- raw:
		default:
			h.log.Warn("ws send buffer full; dropping message", "group", group, "conn_id", c.ID)
		}
	}
}

func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Conn is one client socket plus its outbound queue and inbound rate limit.
type Conn struct {
	ID     uuid.UUID
	UserID uuid.UUID

	ws      *websocket.Conn
	send    chan []byte
	group   string
	limiter *rateLimiter
}

func NewConn(ws *websocket.Conn, userID uuid.UUID) *Conn {
	return &Conn{
		ID:      uuid.New(),
		UserID:  userID,
		ws:      ws,
		send:    make(chan []byte, sendBuffer),
		limiter: newRateLimiter(InboundRateLimit, time.Minute),
	}
}

// Send exposes the outbound queue for the write pump and for tests.
func (c *Conn) Send() <-chan []byte {
	return c.send
}

// AllowInbound reports whether another client frame fits in the rate window.
func (c *Conn) AllowInbound(now time.Time) bool {
	return c.limiter.Allow(now)
}

// ReadPump consumes client frames until the socket closes or the client
// exceeds the inbound rate limit. Inbound frames carry no commands today, so
// they are drained and counted only.
func (c *Conn) ReadPump(hub *Hub, log *logger.Logger) {
	defer func() {
		hub.Leave(c)
		close(c.send)
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("ws read closed", "conn_id", c.ID, "error", err)
			}
			return
		}
		if !c.AllowInbound(time.Now()) {
			log.Warn("ws inbound rate limit exceeded; closing", "conn_id", c.ID, "user_id", c.UserID)
			_ = c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "rate limit exceeded"),
				time.Now().Add(writeWait),
			)
			return
		}
	}
}

// WritePump flushes the outbound queue and keeps the connection alive with
// pings.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// rateLimiter is a fixed-window counter.
type rateLimiter struct {
	mu          sync.Mutex
	max         int
	window      time.Duration
	windowStart time.Time
	count       int
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{max: max, window: window}
}

func (l *rateLimiter) Allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}
	if l.count >= l.max {
		return false
	}
	l.count++
	return true
}
