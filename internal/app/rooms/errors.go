package rooms

import (
	"errors"

	"chiptally/internal/commit"
)

var (
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrRoomNotFound    = errors.New("room_not_found")
	ErrPlayerNotFound  = commit.ErrPlayerNotFound
	ErrRoomIDExhausted = errors.New("failed to create room, try again")
)
