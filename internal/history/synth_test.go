package history

import (
	"reflect"
	"testing"
	"time"

	"chiptally/internal/room"
)

var t0 = time.UnixMilli(1_700_000_000_000)

func players(ps ...room.Player) []room.Player { return ps }

func TestDiffInitialSyncEmitsNothing(t *testing.T) {
	current := players(
		room.Player{ID: "a", Name: "Ann", Hands: 1},
		room.Player{ID: "b", Name: "Bob", Hands: 2},
		room.Player{ID: "c", Name: "Cat", Hands: 3},
	)
	if got := Diff(nil, current, true, t0); len(got) != 0 {
		t.Fatalf("initial sync produced %d entries: %+v", len(got), got)
	}
}

func TestDiffOneNewPlayerIsOneJoin(t *testing.T) {
	prev := ByID(players(room.Player{ID: "a", Name: "Ann", Hands: 1}))
	current := players(
		room.Player{ID: "a", Name: "Ann", Hands: 1},
		room.Player{ID: "b", Name: "Bob", Hands: 1},
	)
	got := Diff(prev, current, false, t0)
	if len(got) != 1 {
		t.Fatalf("entries = %+v, want exactly one", got)
	}
	if got[0].Message != "Bob joined the room" || got[0].Timestamp != t0.UnixMilli() {
		t.Fatalf("unexpected entry: %+v", got[0])
	}
}

func TestDiffHandsMessages(t *testing.T) {
	tests := []struct {
		name string
		from int
		to   int
		want string
	}{
		{name: "single increase shows total", from: 3, to: 4, want: "Ann +1 hands (now 4)"},
		{name: "single decrease shows total", from: 3, to: 2, want: "Ann -1 hands (now 2)"},
		{name: "double decrease", from: 5, to: 3, want: "Ann -2 hands"},
		{name: "large increase", from: 0, to: 7, want: "Ann +7 hands"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := ByID(players(room.Player{ID: "a", Name: "Ann", Hands: tt.from}))
			got := Diff(prev, players(room.Player{ID: "a", Name: "Ann", Hands: tt.to}), false, t0)
			if len(got) != 1 || got[0].Message != tt.want {
				t.Fatalf("entries = %+v, want message %q", got, tt.want)
			}
		})
	}
}

func TestDiffZeroDeltaAndOtherFieldsEmitNothing(t *testing.T) {
	prev := ByID(players(room.Player{ID: "a", Name: "Ann", Hands: 2, CurrentChips: 100}))
	got := Diff(prev, players(room.Player{ID: "a", Name: "Ann", Hands: 2, CurrentChips: 900}), false, t0)
	if len(got) != 0 {
		t.Fatalf("entries = %+v", got)
	}
}

func TestDiffIsPure(t *testing.T) {
	prev := ByID(players(room.Player{ID: "a", Name: "Ann", Hands: 1}))
	current := players(
		room.Player{ID: "a", Name: "Ann", Hands: 3},
		room.Player{ID: "b", Name: "Bob", Hands: 1},
	)
	first := Diff(prev, current, false, t0)
	second := Diff(prev, current, false, t0)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("diff not deterministic:\n%+v\n%+v", first, second)
	}
	if first[0].ID == first[1].ID {
		t.Fatalf("entries share id %q", first[0].ID)
	}
}

func TestMergeCapsAndKeepsNewestFirst(t *testing.T) {
	var existing []room.HistoryEntry
	for i := 0; i < room.MaxHistoryEntries; i++ {
		existing = append(existing, room.HistoryEntry{ID: "old", Timestamp: int64(100 - i)})
	}
	fresh := []room.HistoryEntry{{ID: "new1", Timestamp: 200}, {ID: "new2", Timestamp: 200}}
	got := Merge(existing, fresh, room.MaxHistoryEntries)
	if len(got) != room.MaxHistoryEntries {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].ID != "new1" || got[1].ID != "new2" {
		t.Fatalf("fresh entries not prepended: %+v", got[:3])
	}
	if got[len(got)-1].Timestamp != int64(100-(room.MaxHistoryEntries-3)) {
		t.Fatalf("oldest entries not evicted: last=%+v", got[len(got)-1])
	}
}
