package httptransport

import (
	"errors"
	"net/http"

	"chiptally/internal/app/rooms"
	"chiptally/internal/commit"
	"chiptally/internal/store"
)

// writeServiceError maps domain errors to a status and snake_case code.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	WriteHTTPError(w, status, code)
}

func classify(err error) (int, string) {
	var fanOut *commit.FanOutError
	var commitErr *commit.CommitError
	switch {
	case errors.Is(err, rooms.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, commit.ErrEmptyName):
		return http.StatusBadRequest, "empty_name"
	case errors.Is(err, commit.ErrInvalidNumber):
		return http.StatusBadRequest, "invalid_number"
	case errors.Is(err, commit.ErrInvalidChipValue):
		return http.StatusBadRequest, "invalid_chip_value"
	case errors.Is(err, commit.ErrInvalidConfig):
		return http.StatusBadRequest, "invalid_config"
	case errors.Is(err, commit.ErrMissingRoomID):
		return http.StatusBadRequest, "missing_room_id"
	case errors.Is(err, store.ErrInvalidPath):
		return http.StatusBadRequest, "invalid_path"
	case errors.Is(err, store.ErrInvalidValue):
		return http.StatusBadRequest, "invalid_value"
	case errors.Is(err, rooms.ErrRoomNotFound):
		return http.StatusNotFound, "room_not_found"
	case errors.Is(err, rooms.ErrPlayerNotFound):
		return http.StatusNotFound, "player_not_found"
	case errors.Is(err, rooms.ErrRoomIDExhausted):
		return http.StatusConflict, "room_id_exhausted"
	case errors.As(err, &fanOut):
		return http.StatusInternalServerError, "fan_out_incomplete"
	case errors.As(err, &commitErr), errors.Is(err, store.ErrClosed):
		return http.StatusServiceUnavailable, "commit_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
