package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mmcdole/drinks/internal/domain"
	"github.com/mmcdole/drinks/internal/log"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, f *fixture, hub *Hub) *Server {
	t.Helper()
	if hub == nil {
		hub = NewHub(log.NullLogger())
	}
	return NewServer(f.proxy, hub, log.NullLogger())
}

func TestServerServesFromCache(t *testing.T) {
	f := installed(t)
	s := newTestServer(t, f, nil)

	req, _ := http.NewRequest(http.MethodGet, "/style.css", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if w.Body.String() != "body{}" {
		t.Errorf("Expected body{}, got %q", w.Body.String())
	}
	if src := w.Header().Get(SourceHeader); src != "cache" {
		t.Errorf("Expected source cache, got %s", src)
	}
}

func TestServerOfflineNavigation(t *testing.T) {
	f := installed(t)
	f.fetcher.setOffline(true)
	s := newTestServer(t, f, nil)

	req, _ := http.NewRequest(http.MethodGet, "/receitas", nil)
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if w.Body.String() != "<html>index</html>" {
		t.Errorf("Expected entry page, got %q", w.Body.String())
	}
}

func TestServerOfflineResponse(t *testing.T) {
	f := installed(t)
	f.fetcher.setOffline(true)
	s := newTestServer(t, f, nil)

	req, _ := http.NewRequest(http.MethodGet, "/api/drinks", nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error":"Offline"`) {
		t.Errorf("Expected offline payload, got %s", w.Body.String())
	}
}

func TestServerPassthroughError(t *testing.T) {
	f := installed(t)
	f.fetcher.setOffline(true)
	s := newTestServer(t, f, nil)

	req, _ := http.NewRequest(http.MethodPost, "/api/drinks", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", w.Code)
	}
}

func TestServerStatus(t *testing.T) {
	f := installed(t)
	s := newTestServer(t, f, nil)

	req, _ := http.NewRequest(http.MethodGet, "/__proxy/status", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var status Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if status.Phase != "active" || status.Version != "v1.2" {
		t.Errorf("Expected active v1.2, got %+v", status)
	}
}

func TestServerMessages(t *testing.T) {
	f := installed(t)
	s := newTestServer(t, f, nil)

	tests := []struct {
		name     string
		body     string
		expected int
		contains string
	}{
		{"cache names", `{"type":"GET_CACHE_NAMES"}`, http.StatusOK, `"cacheNames":["drinks-static-v1.2","drinks-dynamic-v1.2"]`},
		{"skip waiting", `{"type":"SKIP_WAITING"}`, http.StatusNoContent, ""},
		{"unknown", `{"type":"PING"}`, http.StatusBadRequest, "unknown message type"},
		{"malformed", `{`, http.StatusBadRequest, "invalid message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, "/__proxy/message", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)

			if w.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("Expected body containing %q, got %s", tt.contains, w.Body.String())
			}
		})
	}
}

func TestWebsocketMessages(t *testing.T) {
	f := installed(t)
	hub := NewHub(log.NullLogger())
	s := newTestServer(t, f, hub)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/__proxy/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(Message{Type: MsgGetCacheNames}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var reply CacheNamesReply
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	expected := []string{"drinks-static-v1.2", "drinks-dynamic-v1.2"}
	if !slices.Equal(reply.CacheNames, expected) {
		t.Errorf("Expected %v, got %v", expected, reply.CacheNames)
	}

	if err := conn.WriteJSON(Message{Type: "PING"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	var errReply ErrorReply
	if err := conn.ReadJSON(&errReply); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if !strings.Contains(errReply.Error, "unknown message type") {
		t.Errorf("Expected unknown message error, got %q", errReply.Error)
	}
}

func TestWebsocketReceivesUpdateBroadcast(t *testing.T) {
	hub := NewHub(log.NullLogger())
	f := newFixture(t, defaultOptions())
	f.proxy.notifier = hub
	if err := f.proxy.Install(context.Background()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	s := newTestServer(t, f, hub)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/__proxy/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	// The hub registers the client after the upgrade completes
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("Expected 1 client, got %d", hub.ClientCount())
	}

	if err := f.proxy.Update(context.Background(), "v1.3", []string{"/index.html"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg domain.ClientMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if msg.Type != MsgUpdateAvailable || msg.Version != "v1.3" {
		t.Errorf("Expected UPDATE_AVAILABLE v1.3, got %+v", msg)
	}
}
