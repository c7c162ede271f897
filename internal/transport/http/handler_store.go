package httptransport

import (
	"encoding/json"
	"net/http"

	"chiptally/internal/store"
	"chiptally/internal/ws"
)

// StoreHandlers expose the raw path API used by remote store clients.
type StoreHandlers struct {
	store store.Store
	ws    *ws.Server
}

func NewStoreHandlers(st store.Store) *StoreHandlers {
	return &StoreHandlers{store: st, ws: ws.NewServer(st)}
}

type ValueResponse struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Value  any    `json:"value"`
}

type KeysResponse struct {
	Path string   `json:"path"`
	Keys []string `json:"keys"`
}

func (h *StoreHandlers) Read() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		value, exists, err := h.store.ReadOnce(r.Context(), path)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ValueResponse{Path: path, Exists: exists, Value: value})
	}
}

func (h *StoreHandlers) Write() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var value any
		if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := h.store.Write(r.Context(), r.URL.Query().Get("path"), value); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *StoreHandlers) Remove() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Remove(r.Context(), r.URL.Query().Get("path")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *StoreHandlers) MultiUpdate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var updates map[string]any
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := h.store.MultiUpdate(r.Context(), updates); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *StoreHandlers) Keys() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lister, ok := h.store.(store.Lister)
		if !ok {
			WriteHTTPError(w, http.StatusNotImplemented, "listing_unsupported")
			return
		}
		path := r.URL.Query().Get("path")
		keys, err := lister.Keys(r.Context(), path)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, KeysResponse{Path: path, Keys: keys})
	}
}

func (h *StoreHandlers) Subscribe() http.HandlerFunc {
	return h.ws.HandleSubscribe
}
