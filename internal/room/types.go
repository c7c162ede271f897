// Package room holds the room data model and turns raw store snapshots into
// complete, ordered room views.
package room

import "time"

type DisplayMode string

const (
	DisplayChip DisplayMode = "chip"
	DisplayCash DisplayMode = "cash"
)

func (m DisplayMode) Valid() bool {
	return m == DisplayChip || m == DisplayCash
}

const (
	DefaultChipsPerHand = 500
	DefaultChipValue    = 0.1
	DefaultTTL          = 30 * 24 * time.Hour
	MaxHistoryEntries   = 30
)

type Config struct {
	ChipsPerHand float64     `json:"chipsPerHand"`
	ChipValue    float64     `json:"chipValue"`
	DisplayMode  DisplayMode `json:"displayMode"`
	CreatedAt    int64       `json:"createdAt"`
}

// DefaultConfig is used for new rooms and whenever a stored config is
// missing or malformed.
func DefaultConfig(now time.Time) Config {
	return Config{
		ChipsPerHand: DefaultChipsPerHand,
		ChipValue:    DefaultChipValue,
		DisplayMode:  DisplayChip,
		CreatedAt:    now.UnixMilli(),
	}
}

type Player struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Hands         int     `json:"hands"`
	CurrentChips  float64 `json:"currentChips"`
	BuyInChips    float64 `json:"buyInChips"`
	Order         int64   `json:"order"`
	BuyInOverride bool    `json:"buyInOverride"`
}

type HistoryEntry struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Data is the fully normalized view of one room.
type Data struct {
	ID        string         `json:"id"`
	Config    Config         `json:"config"`
	Players   []Player       `json:"players"`
	History   []HistoryEntry `json:"history"`
	UpdatedAt int64          `json:"updatedAt"`
	ExpiresAt *int64         `json:"expiresAt,omitempty"`

	// ConfigDefaulted is set when the stored config was missing or unusable
	// and Config holds substitutes. Settings writes then store every field.
	ConfigDefaulted bool `json:"-"`
}

// Player returns the player with the given id.
func (d *Data) Player(id string) (Player, bool) {
	for _, p := range d.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// Payload is the document written when a room is created.
type Payload struct {
	Config    Config            `json:"config"`
	Players   map[string]Player `json:"players,omitempty"`
	UpdatedAt int64             `json:"updatedAt"`
	ExpiresAt int64             `json:"expiresAt"`
}
