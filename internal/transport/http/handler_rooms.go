package httptransport

import (
	"encoding/json"
	"net/http"

	"chiptally/internal/app/rooms"
	"chiptally/internal/commit"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type RoomHandlers struct {
	svc *rooms.Service
}

func NewRoomHandlers(svc *rooms.Service) *RoomHandlers {
	return &RoomHandlers{svc: svc}
}

func (h *RoomHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rooms.CreateRoomRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
		}
		metricRoomCreateTotal.Add(1)
		resp, err := h.svc.CreateRoom(r.Context(), req.HostName)
		if err != nil {
			metricRoomCreateErrors.Add(1)
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func (h *RoomHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.Room(r.Context(), chi.URLParam(r, "room_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *RoomHandlers) UpdateConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch commit.ConfigPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		h.respondWrite(w, r, func() (bool, error) {
			return h.svc.UpdateSettings(r.Context(), chi.URLParam(r, "room_id"), patch)
		})
	}
}

func (h *RoomHandlers) AddPlayer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rooms.AddPlayerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		p, err := h.svc.AddPlayer(r.Context(), chi.URLParam(r, "room_id"), req.Name)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func (h *RoomHandlers) UpdatePlayer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch rooms.PlayerPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		h.respondWrite(w, r, func() (bool, error) {
			return h.svc.UpdatePlayer(r.Context(), chi.URLParam(r, "room_id"), chi.URLParam(r, "player_id"), patch)
		})
	}
}

func (h *RoomHandlers) DeletePlayer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.svc.DeletePlayer(r.Context(), chi.URLParam(r, "room_id"), chi.URLParam(r, "player_id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *RoomHandlers) respondWrite(w http.ResponseWriter, r *http.Request, fn func() (bool, error)) {
	metricCommitRequests.Add(1)
	written, err := fn()
	if err != nil {
		metricCommitRequestErrors.Add(1)
		log.Warn().Err(err).Str("room_id", chi.URLParam(r, "room_id")).Msg("room edit failed")
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms.WriteResponse{Written: written})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
