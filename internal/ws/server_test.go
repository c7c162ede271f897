package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chiptally/internal/store"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/subscribe?path=" + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func TestSubscribeStreamsValues(t *testing.T) {
	mem := store.NewMemory()
	defer mem.Close()
	srv := NewServer(mem)
	server := httptest.NewServer(http.HandlerFunc(srv.HandleSubscribe))
	defer server.Close()

	conn := dial(t, server, "rooms/ABCDEF/config")
	env := readEnvelope(t, conn)
	if env.Type != TypeValue || env.Exists || env.Path != "rooms/ABCDEF/config" {
		t.Fatalf("first message = %+v", env)
	}

	if err := mem.Write(context.Background(), "rooms/ABCDEF/config/chipsPerHand", 300); err != nil {
		t.Fatalf("write: %v", err)
	}
	env = readEnvelope(t, conn)
	value, ok := env.Value.(map[string]any)
	if !env.Exists || !ok || value["chipsPerHand"] != float64(300) {
		t.Fatalf("second message = %+v", env)
	}
}

func TestSubscribeRejectsBadPath(t *testing.T) {
	mem := store.NewMemory()
	defer mem.Close()
	server := httptest.NewServer(http.HandlerFunc(NewServer(mem).HandleSubscribe))
	defer server.Close()

	resp, err := http.Get(server.URL + "/subscribe?path=rooms/a.b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSubscribeAboveDocumentLevelSendsError(t *testing.T) {
	mem := store.NewMemory()
	defer mem.Close()
	server := httptest.NewServer(http.HandlerFunc(NewServer(mem).HandleSubscribe))
	defer server.Close()

	conn := dial(t, server, "rooms")
	env := readEnvelope(t, conn)
	if env.Type != TypeError || env.Error != "invalid_path" {
		t.Fatalf("message = %+v", env)
	}
}
