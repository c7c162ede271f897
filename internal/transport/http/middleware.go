package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"chiptally/internal/logging"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
)

// APILogMiddleware writes one JSON access line per request to the shared log
// writer, tagged with the matched route and the room/player it addressed.
func APILogMiddleware() func(http.Handler) http.Handler {
	logger := slog.New(slog.NewJSONHandler(logging.Writer(), nil))
	return httplog.RequestLogger(logger, &httplog.Options{
		Level:              slog.LevelInfo,
		Schema:             httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
		LogRequestBody:     func(*http.Request) bool { return false },
		LogResponseBody:    func(*http.Request) bool { return false },
		LogRequestHeaders:  []string{},
		LogResponseHeaders: []string{},
		LogExtraAttrs:      accessAttrs,
	})
}

func accessAttrs(req *http.Request, _ string, _ int) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("request_id", chimw.GetReqID(req.Context())),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	}
	rc := chi.RouteContext(req.Context())
	if rc == nil || rc.RoutePattern() == "" {
		return append(attrs, slog.String("route", req.URL.Path))
	}
	attrs = append(attrs, slog.String("route", rc.RoutePattern()))
	for _, key := range []string{"room_id", "player_id"} {
		if v := rc.URLParam(key); v != "" {
			attrs = append(attrs, slog.String(key, v))
		}
	}
	if p := req.URL.Query().Get("path"); p != "" {
		attrs = append(attrs, slog.String("store_path", p))
	}
	return attrs
}

// BodyCaptureMiddleware adds up to limit bytes of the request and response
// bodies to the access line. Streams and upgrades pass through untouched.
func BodyCaptureMiddleware(limit int) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = 4096
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isStreamRequest(r) {
				next.ServeHTTP(w, r)
				return
			}
			reqBody, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(reqBody))

			resp := &limitedBuffer{limit: limit}
			next.ServeHTTP(&captureWriter{ResponseWriter: w, tee: resp}, r)

			req := &limitedBuffer{limit: limit}
			_, _ = req.Write(reqBody)
			httplog.SetAttrs(r.Context(),
				slog.Any("request_body", req.decoded()),
				slog.Bool("request_body_truncated", req.truncated),
				slog.Any("response_body", resp.decoded()),
				slog.Bool("response_body_truncated", resp.truncated),
			)
		})
	}
}

// limitedBuffer keeps the first limit bytes written to it.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if room := b.limit - b.buf.Len(); n > room {
		b.truncated = true
		p = p[:max(room, 0)]
	}
	b.buf.Write(p)
	return n, nil
}

// decoded returns the captured JSON value, or the raw text when it is not
// (or no longer, after truncation) valid JSON.
func (b *limitedBuffer) decoded() any {
	raw := b.buf.Bytes()
	if len(raw) == 0 {
		return ""
	}
	var v any
	if json.Unmarshal(raw, &v) == nil {
		return v
	}
	return string(raw)
}

type captureWriter struct {
	http.ResponseWriter
	tee io.Writer
}

func (c *captureWriter) Write(p []byte) (int, error) {
	_, _ = c.tee.Write(p)
	return c.ResponseWriter.Write(p)
}

func (c *captureWriter) Flush() {
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// WriteHTTPError answers with {"error": code}.
func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: code})
}

// isStreamRequest matches the room SSE feed and the store WebSocket.
func isStreamRequest(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return true
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return true
	}
	path := r.URL.Path
	return (strings.HasPrefix(path, "/api/rooms/") && strings.HasSuffix(path, "/events")) ||
		path == "/api/store/subscribe"
}
