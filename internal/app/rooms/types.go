package rooms

import (
	"chiptally/internal/ledger"
	"chiptally/internal/room"
)

// RoomView is a normalized room plus the figures derived from it.
type RoomView struct {
	Room   room.Data     `json:"room"`
	Totals ledger.Totals `json:"totals"`
	Status string        `json:"status"`
	Hint   string        `json:"hint"`
}

type CreateRoomRequest struct {
	HostName string `json:"hostName"`
}

type CreateRoomResponse struct {
	RoomID string       `json:"roomId"`
	Host   *room.Player `json:"host,omitempty"`
}

type AddPlayerRequest struct {
	Name string `json:"name"`
}

// PlayerPatch carries one edit per request. Exactly one field should be set.
type PlayerPatch struct {
	Name          *string  `json:"name,omitempty"`
	Hands         *float64 `json:"hands,omitempty"`
	AdjustHands   *int     `json:"adjustHands,omitempty"`
	CurrentChips  *float64 `json:"currentChips,omitempty"`
	BuyInChips    *float64 `json:"buyInChips,omitempty"`
	BuyInOverride *bool    `json:"buyInOverride,omitempty"`
}

type WriteResponse struct {
	Written bool `json:"written"`
}
