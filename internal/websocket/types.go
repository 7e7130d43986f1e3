package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/raaihank/grammar-sentinel/internal/checker"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeCheckCompleted carries the overlay of a finished check
	EventTypeCheckCompleted EventType = "check_completed"
	// EventTypeTextChanged announces a new document version
	EventTypeTextChanged EventType = "text_changed"
	// EventTypeSession reports login state changes
	EventTypeSession EventType = "session"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// CheckCompletedEvent wraps a checker event with its rendered HTML
type CheckCompletedEvent struct {
	checker.CheckEvent
	HTML string `json:"html,omitempty"`
}

// TextChangedEvent announces that earlier highlights are out of date
type TextChangedEvent struct {
	Version uint64 `json:"version"`
	Length  int    `json:"length"`
}

// SessionEvent reports whether a user is logged in
type SessionEvent struct {
	LoggedIn bool   `json:"logged_in"`
	Reason   string `json:"reason,omitempty"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type   string      `json:"type"`
	Events []EventType `json:"events,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string

	// nil means all events
	subscription map[EventType]bool
}

// HubStats tracks WebSocket hub statistics
type HubStats struct {
	TotalConnections   int64     `json:"total_connections"`
	ActiveConnections  int64     `json:"active_connections"`
	TotalMessages      int64     `json:"total_messages"`
	TotalBroadcasts    int64     `json:"total_broadcasts"`
	DroppedEvents      int64     `json:"dropped_events"`
	LastConnectionTime time.Time `json:"last_connection_time"`
	LastBroadcastTime  time.Time `json:"last_broadcast_time"`
}
