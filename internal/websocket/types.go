package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeRewrite is sent after every completed rewrite
	EventTypeRewrite EventType = "rewrite"
	// EventTypeUsageExceeded is sent when a client hits the daily limit
	EventTypeUsageExceeded EventType = "usage_exceeded"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
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
	RequestID string      `json:"request_id,omitempty"`
}

// RewriteEvent describes a completed rewrite. It carries lengths, not text.
type RewriteEvent struct {
	RequestID    string   `json:"request_id"`
	Context      string   `json:"context"`
	Strategy     string   `json:"strategy"`
	Changed      bool     `json:"changed"`
	FallbackUsed bool     `json:"fallback_used"`
	Cached       bool     `json:"cached"`
	Rules        []string `json:"rules,omitempty"`
	InputLength  int      `json:"input_length"`
	OutputLength int      `json:"output_length"`
	ProcessingMS float64  `json:"processing_ms"`
}

// UsageExceededEvent is sent when a client is refused for quota
type UsageExceededEvent struct {
	RequestID  string `json:"request_id"`
	ClientIP   string `json:"client_ip"`
	Limit      int    `json:"limit"`
	RetryAfter string `json:"retry_after"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	Strategy         string `json:"strategy"`
	TotalRewrites    int64  `json:"total_rewrites"`
	ChangedRewrites  int64  `json:"changed_rewrites"`
	FallbackRewrites int64  `json:"fallback_rewrites"`
	ConnectedClients int    `json:"connected_clients"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType  `json:"events"`
	Filter *EventFilter `json:"filter,omitempty"`
}

// EventFilter narrows rewrite events
type EventFilter struct {
	Contexts    []string `json:"contexts,omitempty"`
	ChangedOnly bool     `json:"changed_only,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string

	mu           sync.RWMutex
	subscription *SubscriptionRequest
	lastPing     time.Time
}

// Subscription returns the client's current subscription, nil for all events
func (c *Client) Subscription() *SubscriptionRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscription
}

func (c *Client) setSubscription(sub *SubscriptionRequest) {
	c.mu.Lock()
	c.subscription = sub
	c.mu.Unlock()
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()
}
