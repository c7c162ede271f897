package subscription

import "errors"

var (
	ErrRoomNotFound  = errors.New("room does not exist or was deleted")
	ErrMissingRoomID = errors.New("missing_room_id")
	ErrNotConfigured = errors.New("store_not_configured")
)
