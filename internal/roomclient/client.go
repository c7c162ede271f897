// Package roomclient implements the room store against a remote
// chiptally server: reads and writes go over HTTP, subscriptions over
// WebSocket.
package roomclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chiptally/internal/config"
	"chiptally/internal/store"
	"chiptally/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	_ store.Store  = (*Client)(nil)
	_ store.Lister = (*Client)(nil)
)

type Client struct {
	base   *url.URL
	http   *http.Client
	dialer *websocket.Dialer

	closed atomic.Bool
	mu     sync.Mutex
	subs   map[*subscription]struct{}
}

func New(cfg config.ClientConfig) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.ServerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", cfg.ServerURL)
	}
	return &Client{
		base:   u,
		http:   &http.Client{Timeout: cfg.Timeout},
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.Timeout},
		subs:   make(map[*subscription]struct{}),
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.closed.Load() {
		return store.ErrClosed
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidValue, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &APIError{Status: resp.StatusCode, Code: payload.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) ReadOnce(ctx context.Context, path string) (any, bool, error) {
	var resp struct {
		Exists bool `json:"exists"`
		Value  any  `json:"value"`
	}
	err := c.do(ctx, http.MethodGet, c.endpoint("/api/store/value", url.Values{"path": {path}}), nil, &resp)
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Exists, nil
}

func (c *Client) Write(ctx context.Context, path string, value any) error {
	if value == nil {
		return c.Remove(ctx, path)
	}
	return c.do(ctx, http.MethodPut, c.endpoint("/api/store/value", url.Values{"path": {path}}), value, nil)
}

func (c *Client) MultiUpdate(ctx context.Context, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPatch, c.endpoint("/api/store", nil), updates, nil)
}

func (c *Client) Remove(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, c.endpoint("/api/store/value", url.Values{"path": {path}}), nil, nil)
}

func (c *Client) Keys(ctx context.Context, path string) ([]string, error) {
	var resp struct {
		Keys []string `json:"keys"`
	}
	if err := c.do(ctx, http.MethodGet, c.endpoint("/api/store/keys", url.Values{"path": {path}}), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

// Subscribe opens one WebSocket per subscription. The server coalesces
// values, so a slow consumer only sees the latest one.
func (c *Client) Subscribe(ctx context.Context, path string, onValue store.ValueFunc, onError store.ErrorFunc) (func(), error) {
	if c.closed.Load() {
		return nil, store.ErrClosed
	}
	if _, err := store.SplitPath(path); err != nil {
		return nil, err
	}
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = c.base.Path + "/api/store/subscribe"
	u.RawQuery = url.Values{"path": {path}}.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode >= 300 {
			var payload struct {
				Error string `json:"error"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&payload)
			return nil, &APIError{Status: resp.StatusCode, Code: payload.Error}
		}
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}

	sub := &subscription{conn: conn, path: path, onValue: onValue, onError: onError}
	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()
	go sub.run()

	return func() {
		sub.release()
		c.mu.Lock()
		delete(c.subs, sub)
		c.mu.Unlock()
	}, nil
}

// Close releases every open subscription. Later calls fail with
// store.ErrClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[*subscription]struct{})
	c.mu.Unlock()
	for sub := range subs {
		sub.release()
	}
	c.http.CloseIdleConnections()
	return nil
}

type subscription struct {
	conn    *websocket.Conn
	path    string
	onValue store.ValueFunc
	onError store.ErrorFunc

	released atomic.Bool
	once     sync.Once
}

func (s *subscription) run() {
	defer s.release()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.released.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("path", s.path).Msg("subscription connection lost")
				s.deliverError(fmt.Errorf("%w: %v", ErrSubscriptionFailed, err))
			}
			return
		}
		var env ws.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Str("path", s.path).Msg("bad subscription frame")
			continue
		}
		switch env.Type {
		case ws.TypeValue:
			if s.released.Load() {
				return
			}
			s.onValue(env.Value, env.Exists)
		case ws.TypeError:
			s.deliverError(subscriptionError(env.Error))
			return
		}
	}
}

func (s *subscription) deliverError(err error) {
	if s.released.Load() || s.onError == nil {
		return
	}
	s.onError(err)
}

func (s *subscription) release() {
	s.once.Do(func() {
		s.released.Store(true)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
}
