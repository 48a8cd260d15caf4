package websocket

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/raaihank/confidenceboost/internal/config"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound events waiting to be fanned out
	broadcast chan Event

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	stop     chan struct{}
	stopOnce sync.Once

	config   config.WebSocketConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu    sync.RWMutex
	stats HubStats
}

// HubStats tracks WebSocket hub statistics
type HubStats struct {
	TotalConnections   int64     `json:"total_connections"`
	ActiveConnections  int64     `json:"active_connections"`
	TotalMessages      int64     `json:"total_messages"`
	TotalBroadcasts    int64     `json:"total_broadcasts"`
	DroppedClients     int64     `json:"dropped_clients"`
	LastConnectionTime time.Time `json:"last_connection_time"`
	LastDisconnectTime time.Time `json:"last_disconnect_time"`
	LastBroadcastTime  time.Time `json:"last_broadcast_time"`
}

// NewHub creates a new WebSocket hub
func NewHub(cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		config:     cfg,
		logger:     logger.With(zap.String("component", "websocket")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Run starts the hub and handles client registration/unregistration and broadcasting
func (h *Hub) Run() {
	h.logger.Info("Starting WebSocket hub")

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.fanOut(event, nil)

		case <-h.stop:
			h.closeAll()
			h.logger.Info("WebSocket hub stopped")
			return
		}
	}
}

// Stop shuts the hub down and closes every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.stats.TotalConnections++
	h.stats.ActiveConnections++
	h.stats.LastConnectionTime = time.Now()
	active := h.stats.ActiveConnections
	h.mu.Unlock()

	h.logger.Info("Client connected",
		zap.String("client_id", client.ID),
		zap.String("client_ip", client.IP),
		zap.Int64("active_connections", active),
	)

	if h.config.Events.BroadcastConnections {
		h.fanOut(connectionEvent("connected", client), client)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.Send)
		h.stats.ActiveConnections--
		h.stats.LastDisconnectTime = time.Now()
	}
	active := h.stats.ActiveConnections
	h.mu.Unlock()

	if !ok {
		return
	}

	h.logger.Info("Client disconnected",
		zap.String("client_id", client.ID),
		zap.String("client_ip", client.IP),
		zap.Int64("active_connections", active),
	)

	if h.config.Events.BroadcastConnections {
		h.fanOut(connectionEvent("disconnected", client), nil)
	}
}

func connectionEvent(action string, client *Client) Event {
	return Event{
		Type:      EventTypeConnection,
		Timestamp: time.Now(),
		Data: ConnectionEvent{
			Action:    action,
			ClientID:  client.ID,
			ClientIP:  client.IP,
			UserAgent: client.UserAgent,
			Message:   fmt.Sprintf("Client %s %s", client.ID, action),
		},
	}
}

// fanOut delivers an event to every subscribed client except skip.
// Clients whose send buffer is full are dropped.
func (h *Hub) fanOut(event Event, skip *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.TotalBroadcasts++
	h.stats.LastBroadcastTime = time.Now()

	for client := range h.clients {
		if client == skip || !shouldSendToClient(client, event) {
			continue
		}
		select {
		case client.Send <- event:
			h.stats.TotalMessages++
		default:
			h.logger.Warn("Client send channel full, closing connection",
				zap.String("client_id", client.ID),
			)
			delete(h.clients, client)
			close(client.Send)
			h.stats.ActiveConnections--
			h.stats.DroppedClients++
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		close(client.Send)
	}
	h.stats.ActiveConnections = 0
}

// shouldSendToClient applies the client's subscription and filter
func shouldSendToClient(client *Client, event Event) bool {
	sub := client.Subscription()
	if sub == nil {
		return true
	}
	if !slices.Contains(sub.Events, event.Type) {
		return false
	}
	if sub.Filter == nil || event.Type != EventTypeRewrite {
		return true
	}

	rewrite, ok := event.Data.(RewriteEvent)
	if !ok {
		return true
	}
	if sub.Filter.ChangedOnly && !rewrite.Changed {
		return false
	}
	if len(sub.Filter.Contexts) > 0 && !slices.Contains(sub.Filter.Contexts, rewrite.Context) {
		return false
	}
	return true
}

// BroadcastEvent queues an event for all clients if its type is enabled
func (h *Hub) BroadcastEvent(event Event) {
	if !h.shouldBroadcastEvent(event.Type) {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping event",
			zap.String("event_type", string(event.Type)),
		)
	}
}

// BroadcastRewrite publishes a completed rewrite
func (h *Hub) BroadcastRewrite(data RewriteEvent) {
	h.BroadcastEvent(Event{Type: EventTypeRewrite, Data: data, RequestID: data.RequestID})
}

// BroadcastUsageExceeded publishes a quota refusal
func (h *Hub) BroadcastUsageExceeded(data UsageExceededEvent) {
	h.BroadcastEvent(Event{Type: EventTypeUsageExceeded, Data: data, RequestID: data.RequestID})
}

// BroadcastSystemStatus publishes a status snapshot
func (h *Hub) BroadcastSystemStatus(data SystemStatusEvent) {
	h.BroadcastEvent(Event{Type: EventTypeSystemStatus, Data: data})
}

func (h *Hub) shouldBroadcastEvent(eventType EventType) bool {
	switch eventType {
	case EventTypeRewrite:
		return h.config.Events.BroadcastRewrites
	case EventTypeUsageExceeded:
		return h.config.Events.BroadcastUsage
	case EventTypeSystemStatus:
		return h.config.Events.BroadcastSystem
	case EventTypeConnection:
		return h.config.Events.BroadcastConnections
	default:
		return false
	}
}

// HandleWebSocket upgrades the request and attaches a new client
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="confidenceboost"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if limit := h.config.MaxConnections; limit > 0 && h.ClientCount() >= limit {
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          "client_" + uuid.NewString()[:8],
		Conn:        conn,
		Send:        make(chan Event, 256),
		ConnectedAt: time.Now(),
		IP:          ClientIP(r),
		UserAgent:   r.UserAgent(),
		lastPing:    time.Now(),
	}

	select {
	case h.register <- client:
	case <-h.stop:
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

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.config.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Conn.WriteJSON(event); err != nil {
				h.logger.Error("Failed to write WebSocket message",
					zap.String("client_id", client.ID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
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
		case <-h.stop:
		}
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.touch()
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg ClientMessage
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error",
					zap.String("client_id", client.ID),
					zap.Error(err),
				)
			}
			return
		}

		h.handleClientMessage(client, msg)
	}
}

func (h *Hub) handleClientMessage(client *Client, msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		raw, err := json.Marshal(msg.Data)
		if err != nil {
			return
		}
		var subscription SubscriptionRequest
		if err := json.Unmarshal(raw, &subscription); err != nil {
			h.logger.Debug("Ignoring malformed subscription", zap.String("client_id", client.ID))
			return
		}
		client.setSubscription(&subscription)
		h.logger.Info("Client subscription updated",
			zap.String("client_id", client.ID),
			zap.Any("subscription", subscription),
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

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetStats returns current hub statistics
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := h.stats
	stats.ActiveConnections = int64(len(h.clients))
	return stats
}

// ClientIP extracts the client IP from the request
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
