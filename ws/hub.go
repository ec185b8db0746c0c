// Package ws implements the WebSocket broadcast surface: each connection
// subscribes to the engine-wide event broadcaster and receives the subset
// of events its owner/position/stream filters select.
//
// Grounded on ws/hub.go's Hub/Client/ServeWs/extractAndValidateToken shape
// (JWT-gated upgrade, per-client buffered send, non-blocking fan-out) but
// reworked from one shared broadcast channel replicated to every client
// onto internal/core.Broadcaster's per-subscriber channel, since that
// already gives each connection its own bounded, drop-oldest queue.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/rtx-labs/posengine/auth"
	"github.com/rtx-labs/posengine/events"
	"github.com/rtx-labs/posengine/internal/core"
	"github.com/rtx-labs/posengine/logging"
)

var errNoToken = errors.New("no token provided")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var allStreams = []string{"positions", "pnl", "alerts", "events"}

// client holds one connection's subscription filters and send queue.
type client struct {
	conn     *websocket.Conn
	send     chan []byte
	owner    string
	position string // empty matches every position
	streams  map[string]bool
}

func (c *client) accepts(env events.Envelope) bool {
	if env.Owner != "" && env.Owner != c.owner {
		return false
	}
	if c.position != "" && env.Position != "" && env.Position != c.position {
		return false
	}
	return c.streams[env.Stream]
}

// Hub tracks connected clients for introspection (ClientCount, health)
// and owns the auth service used to gate each upgrade.
type Hub struct {
	broadcaster *core.Broadcaster[events.Envelope]
	auth        *auth.Service
	logger      *logging.Logger

	mu      sync.RWMutex
	clients map[*client]bool
}

// NewHub constructs a Hub fanning broadcaster's events out to authenticated
// WebSocket clients.
func NewHub(broadcaster *core.Broadcaster[events.Envelope], authSvc *auth.Service, logger *logging.Logger) *Hub {
	return &Hub{
		broadcaster: broadcaster,
		auth:        authSvc,
		clients:     make(map[*client]bool),
		logger:      logger,
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWs upgrades r to a WebSocket connection, authenticates it, and pumps
// filtered events to it until the client disconnects or ctx is canceled.
func (h *Hub) ServeWs(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	owner, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if q := r.URL.Query().Get("owner"); q != "" && q != owner {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("websocket upgrade failed", logging.Any("error", err.Error()))
		}
		return
	}

	c := &client{
		conn:     conn,
		send:     make(chan []byte, 256),
		owner:    owner,
		position: r.URL.Query().Get("position"),
		streams:  parseStreams(r.URL.Query().Get("streams")),
	}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	id, ch := h.broadcaster.Subscribe()

	connCtx, cancel := context.WithCancel(ctx)
	go h.writePump(c)
	go h.readPump(c, cancel)
	go h.filterPump(connCtx, c, ch)

	go func() {
		<-connCtx.Done()
		h.broadcaster.Unsubscribe(id)
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(c.send)
		conn.Close()
	}()
}

// filterPump forwards events matching c's filters onto c.send, dropping
// (not blocking) when the client is behind.
func (h *Hub) filterPump(ctx context.Context, c *client, ch <-chan events.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			if !c.accepts(env) {
				continue
			}
			body, err := marshalEnvelope(env)
			if err != nil {
				continue
			}
			select {
			case c.send <- body:
			default:
			}
		}
	}
}

// writePump is the sole goroutine that writes to c.conn, per gorilla's
// one-writer-per-connection rule.
func (h *Hub) writePump(c *client) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump drains and discards client frames, detecting disconnects; this
// surface is send-only from the server's side.
func (h *Hub) readPump(c *client, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// authenticate validates the bearer token from the token query parameter
// or Authorization header, mirroring extractAndValidateToken.
func (h *Hub) authenticate(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if header := r.Header.Get("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				token = parts[1]
			}
		}
	}
	if token == "" {
		return "", errNoToken
	}
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.Owner, nil
}

func parseStreams(raw string) map[string]bool {
	out := make(map[string]bool, len(allStreams))
	if raw == "" {
		for _, s := range allStreams {
			out[s] = true
		}
		return out
	}
	for _, s := range strings.Split(raw, ",") {
		out[strings.TrimSpace(s)] = true
	}
	return out
}

func marshalEnvelope(env events.Envelope) ([]byte, error) {
	return json.Marshal(env)
}
