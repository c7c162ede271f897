package history

import (
	"sync"
	"time"

	"chiptally/internal/room"
)

// Accumulator carries synthesizer state for one room at a time. Observing a
// different room id starts over, so nothing leaks between rooms.
type Accumulator struct {
	mu          sync.Mutex
	max         int
	roomID      string
	previous    map[string]room.Player
	initialized bool
	entries     []room.HistoryEntry
}

func NewAccumulator(max int) *Accumulator {
	if max <= 0 {
		max = room.MaxHistoryEntries
	}
	return &Accumulator{max: max}
}

// Observe feeds the latest view of roomID and returns the retained entries,
// newest first. A nil view means the room is gone and clears all state.
func (a *Accumulator) Observe(roomID string, data *room.Data, now time.Time) []room.HistoryEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if roomID != a.roomID {
		a.resetLocked(roomID)
	}
	if data == nil {
		a.resetLocked(roomID)
		return nil
	}
	if !a.initialized {
		a.entries = Merge(nil, data.History, a.max)
	} else if fresh := Diff(a.previous, data.Players, false, now); len(fresh) > 0 {
		a.entries = Merge(a.entries, fresh, a.max)
	}
	a.previous = ByID(data.Players)
	a.initialized = true
	return a.snapshotLocked()
}

// Reset drops all state and pins the accumulator to roomID.
func (a *Accumulator) Reset(roomID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked(roomID)
}

func (a *Accumulator) Entries() []room.HistoryEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Accumulator) resetLocked(roomID string) {
	a.roomID = roomID
	a.previous = nil
	a.initialized = false
	a.entries = nil
}

func (a *Accumulator) snapshotLocked() []room.HistoryEntry {
	out := make([]room.HistoryEntry, len(a.entries))
	copy(out, a.entries)
	return out
}
