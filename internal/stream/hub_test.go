package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Versifine/strider/internal/input"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	hub := NewHub(nil, false)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	waitFor(t, "client registration", func() bool { return hub.Clients() == 1 })

	if err := hub.Broadcast(map[string]any{"type": "frame", "index": 7}); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var got struct {
		Type  string `json:"type"`
		Index int    `json:"index"`
	}
	if err := json.Unmarshal(msg, &got); err != nil || got.Type != "frame" || got.Index != 7 {
		t.Fatalf("message = %s (%v)", msg, err)
	}

	_ = conn.Close()
	waitFor(t, "client removal", func() bool { return hub.Clients() == 0 })
}

func TestClientInputUpdatesControls(t *testing.T) {
	var controls input.Latch
	hub := NewHub(&controls, false)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	msgs := []string{
		`not json`,
		`{"type":"other","forward":1}`,
		`{"type":"input","forward":0.5,"jump":true,"camera":[0,0,1]}`,
	}
	for _, m := range msgs {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
			t.Fatalf("WriteMessage() error = %v", err)
		}
	}
	waitFor(t, "input sample", func() bool { return controls.Sample(0).Forward == 0.5 })
	if s := controls.Sample(0); !s.Jump || s.Camera.Z() != 1 {
		t.Fatalf("sample = %+v", s)
	}
}

func TestSlowClientDropsFrames(t *testing.T) {
	hub := NewHub(nil, false)
	_, ch := hub.register()
	for i := 0; i < clientBuffer+5; i++ {
		_ = hub.Broadcast(i)
	}
	if len(ch) != clientBuffer || hub.Dropped() != 5 {
		t.Fatalf("buffered=%d dropped=%d, want %d/5", len(ch), hub.Dropped(), clientBuffer)
	}
}

func TestRemoteRejected(t *testing.T) {
	hub := NewHub(nil, false)
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	rec := httptest.NewRecorder()
	hub.Handler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:80", true},
		{"[::1]:80", true},
		{"10.0.0.1:80", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := isLoopbackRemote(tt.addr); got != tt.want {
			t.Errorf("isLoopbackRemote(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
