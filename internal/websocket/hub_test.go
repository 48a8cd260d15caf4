package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raaihank/confidenceboost/internal/config"
	"go.uber.org/zap"
)

func testHubConfig() config.WebSocketConfig {
	cfg := config.GetDefaults().WebSocket
	cfg.Events.BroadcastConnections = false
	return cfg
}

func startHub(t *testing.T, cfg config.WebSocketConfig) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(cfg, zap.NewNop())
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return hub, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, have %d", n, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event map[string]interface{}
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	return event
}

func TestHubBroadcastsRewrite(t *testing.T) {
	hub, srv := startHub(t, testHubConfig())

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)

	hub.BroadcastRewrite(RewriteEvent{
		RequestID:   "req-1",
		Context:     "dating",
		Strategy:    "local",
		Changed:     true,
		Rules:       []string{"maybe"},
		InputLength: 42,
	})

	event := readEvent(t, conn)
	if event["type"] != string(EventTypeRewrite) || event["request_id"] != "req-1" {
		t.Errorf("Unexpected event %v", event)
	}
	data, _ := event["data"].(map[string]interface{})
	if data["context"] != "dating" || data["input_length"] != float64(42) {
		t.Errorf("Unexpected event data %v", data)
	}
	if _, hasText := data["text"]; hasText {
		t.Error("Rewrite events must not carry message text")
	}
}

func TestHubPing(t *testing.T) {
	hub, srv := startHub(t, testHubConfig())

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)

	if err := conn.WriteJSON(ClientMessage{Type: "ping"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if event := readEvent(t, conn); event["type"] != string(EventTypePong) {
		t.Errorf("Expected pong, got %v", event)
	}
}

func TestHubDisabledEventsAreDropped(t *testing.T) {
	cfg := testHubConfig()
	cfg.Events.BroadcastRewrites = false
	hub, srv := startHub(t, cfg)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)

	hub.BroadcastRewrite(RewriteEvent{RequestID: "dropped"})
	hub.BroadcastSystemStatus(SystemStatusEvent{Status: "healthy"})

	if event := readEvent(t, conn); event["type"] != string(EventTypeSystemStatus) {
		t.Errorf("Expected only the status event, got %v", event)
	}
}

func TestHubBasicAuth(t *testing.T) {
	cfg := testHubConfig()
	cfg.Username = "admin"
	cfg.Password = "secret"
	hub, srv := startHub(t, cfg)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err == nil {
		t.Fatal("Expected dial without credentials to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %v", resp)
	}

	header := http.Header{}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.SetBasicAuth("admin", "secret")
	header.Set("Authorization", req.Header.Get("Authorization"))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	if err != nil {
		t.Fatalf("Dial with credentials failed: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)
}

func TestHubMaxConnections(t *testing.T) {
	cfg := testHubConfig()
	cfg.MaxConnections = 1
	hub, srv := startHub(t, cfg)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 for second connection, got %v", err)
	}
}

func TestShouldSendToClient(t *testing.T) {
	rewrite := Event{Type: EventTypeRewrite, Data: RewriteEvent{Context: "dating", Changed: false}}
	status := Event{Type: EventTypeSystemStatus, Data: SystemStatusEvent{}}

	tests := []struct {
		name     string
		sub      *SubscriptionRequest
		event    Event
		expected bool
	}{
		{"NoSubscription", nil, rewrite, true},
		{"NotSubscribed", &SubscriptionRequest{Events: []EventType{EventTypeSystemStatus}}, rewrite, false},
		{"Subscribed", &SubscriptionRequest{Events: []EventType{EventTypeRewrite}}, rewrite, true},
		{"ContextFilterMatch", &SubscriptionRequest{Events: []EventType{EventTypeRewrite}, Filter: &EventFilter{Contexts: []string{"dating"}}}, rewrite, true},
		{"ContextFilterMiss", &SubscriptionRequest{Events: []EventType{EventTypeRewrite}, Filter: &EventFilter{Contexts: []string{"professional"}}}, rewrite, false},
		{"ChangedOnly", &SubscriptionRequest{Events: []EventType{EventTypeRewrite}, Filter: &EventFilter{ChangedOnly: true}}, rewrite, false},
		{"FilterIgnoredForStatus", &SubscriptionRequest{Events: []EventType{EventTypeSystemStatus}, Filter: &EventFilter{ChangedOnly: true}}, status, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{}
			client.setSubscription(tt.sub)
			if got := shouldSendToClient(client, tt.event); got != tt.expected {
				t.Errorf("shouldSendToClient() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:51234"
	if got := ClientIP(req); got != "10.0.0.5" {
		t.Errorf("Expected host without port, got %s", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Errorf("Expected first forwarded address, got %s", got)
	}
}
