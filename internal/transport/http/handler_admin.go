package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"chiptally/internal/store"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the backing store answers. Backends without a
// remote connection are always up.
func Health(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p, ok := st.(pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}
