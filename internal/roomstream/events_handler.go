// Package roomstream serves a room's normalized view as a server-sent event
// stream.
package roomstream

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"chiptally/internal/ids"
	"chiptally/internal/ledger"
	"chiptally/internal/room"
	"chiptally/internal/store"
	"chiptally/internal/subscription"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
)

var pingInterval = 15 * time.Second

// RoomEvent is the payload of "room" events.
type RoomEvent struct {
	Room    *room.Data          `json:"room"`
	History []room.HistoryEntry `json:"history"`
	Totals  ledger.Totals       `json:"totals"`
	Status  string              `json:"status"`
	Hint    string              `json:"hint"`
}

type ErrorEvent struct {
	Error string `json:"error"`
}

// EventsHandler streams "room" events for {room_id} on every change and
// pings in between. An "error" event (room missing, store failure) ends the
// stream.
func EventsHandler(st store.Store, clock quartz.Clock) http.HandlerFunc {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "room_id")
		if !ids.ValidRoomID(roomID) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_request"}`))
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		SetSSEHeaders(w)
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		metricRoomSSEConnectionsTotal.Add(1)
		metricRoomSSEConnectionsActive.Add(1)
		defer metricRoomSSEConnectionsActive.Add(-1)

		// Only the newest state matters to a viewer; older ones are dropped.
		latest := make(chan subscription.State, 1)
		ctrl := subscription.New(st, subscription.WithClock(clock))
		cancel := ctrl.Watch(func(s subscription.State) {
			if s.Loading || s.RoomID == "" {
				return
			}
			select {
			case <-latest:
			default:
			}
			latest <- s
		})
		defer cancel()
		ctrl.SetRoom(r.Context(), roomID)
		defer ctrl.Stop()

		ticker := clock.NewTicker(pingInterval, "roomstream", "ping")
		defer ticker.Stop()
		var seq int64
		for {
			select {
			case <-r.Context().Done():
				return
			case s := <-latest:
				seq++
				ev := stateEvent(s, clock.Now())
				ev.EventID = strconv.FormatInt(seq, 10)
				if err := WriteSSE(w, ev); err != nil {
					return
				}
				flusher.Flush()
				if ev.Event == "error" {
					return
				}
			case <-ticker.C:
				now := clock.Now().UnixMilli()
				ping := StreamEvent{
					Event:    "ping",
					RoomID:   roomID,
					ServerTS: now,
					Data:     map[string]any{"ts": now},
				}
				if err := WriteSSE(w, ping); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func stateEvent(s subscription.State, now time.Time) StreamEvent {
	ev := StreamEvent{RoomID: s.RoomID, ServerTS: now.UnixMilli()}
	if s.Err != nil || s.Room == nil {
		ev.Event = "error"
		ev.Data = ErrorEvent{Error: errorCode(s.Err)}
		return ev
	}
	cfg := s.Room.Config
	ev.Event = "room"
	ev.Data = RoomEvent{
		Room:    s.Room,
		History: s.History,
		Totals:  s.Totals,
		Status:  ledger.BalanceStatus(s.Totals, cfg.DisplayMode, cfg.ChipValue),
		Hint:    ledger.Hint(cfg),
	}
	return ev
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, subscription.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, subscription.ErrMissingRoomID):
		return "invalid_request"
	case errors.Is(err, subscription.ErrNotConfigured):
		return "store_not_configured"
	default:
		return "internal_error"
	}
}
