package room

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedSnapshot = errors.New("malformed_snapshot")

// Snapshot is a raw room value as pushed by the store. Every field may be
// absent; older rooms have no history and no buyInOverride flags.
type Snapshot struct {
	Config    *RawConfig
	Players   map[string]RawPlayer
	History   map[string]HistoryEntry
	UpdatedAt *int64
	ExpiresAt *int64
}

type RawConfig struct {
	ChipsPerHand *float64 `json:"chipsPerHand"`
	ChipValue    *float64 `json:"chipValue"`
	DisplayMode  string   `json:"displayMode"`
	CreatedAt    *float64 `json:"createdAt"`
}

type RawPlayer struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Hands         float64  `json:"hands"`
	CurrentChips  float64  `json:"currentChips"`
	BuyInChips    float64  `json:"buyInChips"`
	Order         *float64 `json:"order"`
	BuyInOverride *bool    `json:"buyInOverride"`
}

type rawHistoryEntry struct {
	ID        string  `json:"id"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}

type rawSnapshot struct {
	Config    json.RawMessage            `json:"config"`
	Players   map[string]json.RawMessage `json:"players"`
	History   map[string]json.RawMessage `json:"history"`
	UpdatedAt *float64                   `json:"updatedAt"`
	ExpiresAt *float64                   `json:"expiresAt"`
}

// DecodeSnapshot converts a store value into a Snapshot. A nil value yields a
// nil snapshot. Sections that fail to decode are treated as absent so one bad
// player entry does not hide the rest of the room.
func DecodeSnapshot(value any) (*Snapshot, error) {
	if value == nil {
		return nil, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	var raw rawSnapshot
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	snap := &Snapshot{
		UpdatedAt: millisPtr(raw.UpdatedAt),
		ExpiresAt: millisPtr(raw.ExpiresAt),
	}
	if len(raw.Config) > 0 && string(raw.Config) != "null" {
		var cfg RawConfig
		if err := json.Unmarshal(raw.Config, &cfg); err == nil {
			snap.Config = &cfg
		}
	}
	if len(raw.Players) > 0 {
		snap.Players = make(map[string]RawPlayer, len(raw.Players))
		for id, msg := range raw.Players {
			var p RawPlayer
			if err := json.Unmarshal(msg, &p); err != nil {
				continue
			}
			snap.Players[id] = p
		}
	}
	if len(raw.History) > 0 {
		snap.History = make(map[string]HistoryEntry, len(raw.History))
		for id, msg := range raw.History {
			var h rawHistoryEntry
			if err := json.Unmarshal(msg, &h); err != nil {
				continue
			}
			if h.ID == "" {
				h.ID = id
			}
			snap.History[id] = HistoryEntry{ID: h.ID, Message: h.Message, Timestamp: int64(h.Timestamp)}
		}
	}
	return snap, nil
}

func millisPtr(v *float64) *int64 {
	if v == nil {
		return nil
	}
	out := int64(*v)
	return &out
}
