// Package websocket pushes live preview events to browser clients.
package websocket

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/raaihank/grammar-sentinel/internal/checker"
	"github.com/raaihank/grammar-sentinel/internal/config"
	"github.com/raaihank/grammar-sentinel/internal/logger"
	"github.com/raaihank/grammar-sentinel/internal/metrics"
	"github.com/raaihank/grammar-sentinel/internal/render"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 512
	sendBuffer            = 256
)

// Hub maintains the set of active clients and broadcasts events to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	config   config.WebSocketConfig
	upgrader websocket.Upgrader
	renderer render.Renderer
	metrics  *metrics.Metrics
	logger   *logger.Logger

	mu    sync.RWMutex
	stats HubStats
}

// Option configures a Hub
type Option func(*Hub)

// WithRenderer attaches rendered HTML to check events
func WithRenderer(r render.Renderer) Option {
	return func(h *Hub) { h.renderer = r }
}

// WithMetrics reports the number of connected clients
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a new WebSocket hub
func NewHub(cfg config.WebSocketConfig, log *logger.Logger, opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		config:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// the preview page is served from the same local server
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log.WithComponent("websocket"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run handles registration and broadcasting until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Starting WebSocket hub")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case event := <-h.broadcast:
			h.deliver(event, nil)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		close(client.Send)
	}
	h.stats.ActiveConnections = 0
	h.reportClients()
	h.logger.Info("WebSocket hub stopped")
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.stats.TotalConnections++
	h.stats.ActiveConnections = int64(len(h.clients))
	h.stats.LastConnectionTime = time.Now()
	h.reportClients()
	h.mu.Unlock()

	h.logger.Info("Client connected",
		zap.String("client_id", client.ID),
		zap.String("client_ip", client.IP),
		zap.Int("active_connections", len(h.clients)),
	)

	if h.config.Events.BroadcastConnections {
		h.deliver(h.connectionEvent("connected", client), client)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.Send)
		h.stats.ActiveConnections = int64(len(h.clients))
		h.reportClients()
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	h.logger.Info("Client disconnected",
		zap.String("client_id", client.ID),
		zap.String("client_ip", client.IP),
	)

	if h.config.Events.BroadcastConnections {
		h.deliver(h.connectionEvent("disconnected", client), nil)
	}
}

func (h *Hub) connectionEvent(action string, client *Client) Event {
	return Event{
		Type:      EventTypeConnection,
		Timestamp: time.Now(),
		Data: ConnectionEvent{
			Action:    action,
			ClientID:  client.ID,
			ClientIP:  client.IP,
			UserAgent: client.UserAgent,
		},
	}
}

// deliver sends event to every subscribed client except exclude. Clients
// whose buffers are full are dropped.
func (h *Hub) deliver(event Event, exclude *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.TotalBroadcasts++
	h.stats.LastBroadcastTime = time.Now()

	for client := range h.clients {
		if client == exclude || !client.wants(event.Type) {
			continue
		}
		select {
		case client.Send <- event:
			h.stats.TotalMessages++
		default:
			h.logger.Warn("Client send buffer full, closing connection", zap.String("client_id", client.ID))
			delete(h.clients, client)
			close(client.Send)
		}
	}
	h.stats.ActiveConnections = int64(len(h.clients))
	h.reportClients()
}

// reportClients must be called with mu held
func (h *Hub) reportClients() {
	if h.metrics != nil {
		h.metrics.SetClients(len(h.clients))
	}
}

func (c *Client) wants(t EventType) bool {
	return c.subscription == nil || c.subscription[t]
}

// BroadcastEvent queues an event if its type is enabled in configuration
func (h *Hub) BroadcastEvent(event Event) {
	if !h.shouldBroadcast(event.Type) {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case h.broadcast <- event:
	default:
		h.mu.Lock()
		h.stats.DroppedEvents++
		h.mu.Unlock()
		h.logger.Warn("Broadcast channel full, dropping event", zap.String("event_type", string(event.Type)))
	}
}

func (h *Hub) shouldBroadcast(t EventType) bool {
	switch t {
	case EventTypeCheckCompleted:
		return h.config.Events.BroadcastChecks
	case EventTypeTextChanged:
		return h.config.Events.BroadcastText
	case EventTypeSession:
		return h.config.Events.BroadcastSession
	case EventTypeConnection:
		return h.config.Events.BroadcastConnections
	default:
		return false
	}
}

// PublishCheck implements checker.Publisher
func (h *Hub) PublishCheck(ev checker.CheckEvent) {
	data := CheckCompletedEvent{CheckEvent: ev}
	if h.renderer != nil {
		html, err := render.String(h.renderer, ev.Segments)
		if err != nil {
			h.logger.Warn("Failed to render check event", zap.Error(err))
		} else {
			data.HTML = html
		}
	}
	h.BroadcastEvent(Event{Type: EventTypeCheckCompleted, Data: data})
}

// PublishSession implements checker.Publisher
func (h *Hub) PublishSession(loggedIn bool, reason string) {
	h.BroadcastEvent(Event{Type: EventTypeSession, Data: SessionEvent{LoggedIn: loggedIn, Reason: reason}})
}

// PublishText announces a new document version
func (h *Hub) PublishText(version uint64, text string) {
	h.BroadcastEvent(Event{Type: EventTypeTextChanged, Data: TextChangedEvent{Version: version, Length: len(text)}})
}

// HandleWebSocket upgrades the request and serves the client
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="grammar-sentinel"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.NewString(),
		Conn:        conn,
		Send:        make(chan Event, sendBuffer),
		ConnectedAt: time.Now(),
		IP:          clientIP(r),
		UserAgent:   r.UserAgent(),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

// authorized checks basic auth when credentials are configured
func (h *Hub) authorized(r *http.Request) bool {
	if h.config.Username == "" && h.config.Password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.config.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(h.config.Password)) == 1
	return userOK && passOK
}

func (h *Hub) writeWait() time.Duration {
	if h.config.WriteTimeout > 0 {
		return h.config.WriteTimeout
	}
	return defaultWriteWait
}

func (h *Hub) pongWait() time.Duration {
	if h.config.PongTimeout > 0 {
		return h.config.PongTimeout
	}
	return defaultPongWait
}

func (h *Hub) pingPeriod() time.Duration {
	if p := h.config.PingInterval; p > 0 && p < h.pongWait() {
		return p
	}
	return (h.pongWait() * 9) / 10
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(h.pingPeriod())
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(h.writeWait()))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(event); err != nil {
				h.logger.Debug("Failed to write WebSocket message",
					zap.String("client_id", client.ID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(h.writeWait()))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(client *Client) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
		client.Conn.Close()
	}()

	limit := h.config.MaxMessageSize
	if limit <= 0 {
		limit = defaultMaxMessageSize
	}
	client.Conn.SetReadLimit(limit)
	client.Conn.SetReadDeadline(time.Now().Add(h.pongWait()))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(h.pongWait()))
		return nil
	})

	for {
		var msg ClientMessage
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket error", zap.String("client_id", client.ID), zap.Error(err))
			}
			return
		}
		h.handleClientMessage(client, msg)
	}
}

func (h *Hub) handleClientMessage(client *Client, msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		sub := make(map[EventType]bool, len(msg.Events))
		for _, t := range msg.Events {
			sub[t] = true
		}
		h.mu.Lock()
		client.subscription = sub
		h.mu.Unlock()
		h.logger.Debug("Client subscription updated",
			zap.String("client_id", client.ID),
			zap.Int("events", len(sub)),
		)

	case "ping":
		h.mu.RLock()
		defer h.mu.RUnlock()
		if !h.clients[client] {
			return
		}
		select {
		case client.Send <- Event{Type: EventTypePong, Timestamp: time.Now(), Data: map[string]string{"message": "pong"}}:
		default:
		}
	}
}

// Stats returns current hub statistics
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := h.stats
	stats.ActiveConnections = int64(len(h.clients))
	return stats
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
