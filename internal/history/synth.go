// Package history synthesizes a change feed by diffing consecutive player
// collections of a room.
package history

import (
	"fmt"
	"strconv"
	"time"

	"chiptally/internal/room"
)

const (
	kindJoin     = "join"
	kindIncrease = "inc"
	kindDecrease = "dec"
)

// Diff compares the previous players of a room with the current ones and
// returns the entries describing what changed, in current player order. On
// the initial sync nothing is emitted: a room populated all at once is not a
// change. The result depends only on its arguments.
func Diff(previous map[string]room.Player, current []room.Player, initial bool, now time.Time) []room.HistoryEntry {
	if initial {
		return nil
	}
	ts := now.UnixMilli()
	var out []room.HistoryEntry
	for _, p := range current {
		prev, ok := previous[p.ID]
		if !ok {
			out = append(out, entry(ts, p.ID, kindJoin, p.Name+" joined the room"))
			continue
		}
		diff := p.Hands - prev.Hands
		if diff == 0 {
			continue
		}
		out = append(out, handsEntry(ts, p, diff))
	}
	return out
}

func handsEntry(ts int64, p room.Player, diff int) room.HistoryEntry {
	kind := kindIncrease
	sign := "+"
	abs := diff
	if diff < 0 {
		kind = kindDecrease
		sign = "-"
		abs = -diff
	}
	msg := fmt.Sprintf("%s %s%d hands", p.Name, sign, abs)
	if abs == 1 {
		msg += " (now " + strconv.Itoa(p.Hands) + ")"
	}
	return entry(ts, p.ID, kind, msg)
}

func entry(ts int64, playerID, kind, msg string) room.HistoryEntry {
	return room.HistoryEntry{
		ID:        "history_" + strconv.FormatInt(ts, 10) + "_" + playerID + "_" + kind,
		Message:   msg,
		Timestamp: ts,
	}
}

// Merge prepends fresh entries to existing ones and keeps at most max.
func Merge(existing, fresh []room.HistoryEntry, max int) []room.HistoryEntry {
	if max <= 0 {
		max = room.MaxHistoryEntries
	}
	out := make([]room.HistoryEntry, 0, min(len(existing)+len(fresh), max))
	out = append(out, fresh...)
	out = append(out, existing...)
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// ByID indexes players by id.
func ByID(players []room.Player) map[string]room.Player {
	out := make(map[string]room.Player, len(players))
	for _, p := range players {
		out[p.ID] = p
	}
	return out
}
