// Package ws relays store subscriptions to remote clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"chiptally/internal/store"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

type Server struct {
	store    store.Store
	upgrader websocket.Upgrader
}

func NewServer(st store.Store) *Server {
	return &Server{
		store:    st,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

type client struct {
	conn *websocket.Conn
	// latest holds at most one pending message; a newer value replaces it.
	latest chan []byte
	final  chan []byte
	once   sync.Once
}

// HandleSubscribe upgrades the request and streams the value at ?path= until
// either side closes.
func (s *Server) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if _, err := store.SplitPath(path); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_path"}`))
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	metricWSConnectionsTotal.Add(1)
	metricWSConnectionsActive.Add(1)
	defer metricWSConnectionsActive.Add(-1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &client{conn: conn, latest: make(chan []byte, 1), final: make(chan []byte, 1)}

	unsubscribe, err := s.store.Subscribe(ctx, path,
		func(value any, exists bool) {
			c.push(ValueMessage{Type: TypeValue, ProtocolVersion: ProtocolVersion, Path: path, Exists: exists, Value: value})
		},
		func(err error) {
			c.fail(errorCode(err))
		},
	)
	if err != nil {
		c.fail(errorCode(err))
	} else {
		defer unsubscribe()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop(ctx)
	}()
	c.readLoop()
	cancel()
	<-done
	_ = conn.Close()
	log.Debug().Str("path", path).Msg("store subscription closed")
}

func (c *client) push(msg ValueMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case <-c.latest:
	default:
	}
	select {
	case c.latest <- b:
	default:
	}
}

func (c *client) fail(code string) {
	c.once.Do(func() {
		b, _ := json.Marshal(ErrorMessage{Type: TypeError, ProtocolVersion: ProtocolVersion, Error: code})
		c.final <- b
	})
}

// readLoop only watches for the peer going away.
func (c *client) readLoop() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.latest:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = c.conn.Close()
				return
			}
		case msg := <-c.final:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.TextMessage, msg)
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = c.conn.Close()
			return
		}
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, store.ErrInvalidPath):
		return "invalid_path"
	case errors.Is(err, store.ErrClosed):
		return "store_closed"
	default:
		return "store_error"
	}
}
