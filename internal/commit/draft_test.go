package commit

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

type fixedIDs struct {
	room   string
	player string
}

func (f fixedIDs) RoomID() string                { return f.room }
func (f fixedIDs) PlayerID() string              { return f.player }
func (f fixedIDs) HistoryID(ts time.Time) string { return "history_fixed" }

func nan() float64 { return math.NaN() }

func TestDraftSyncRespectsEditing(t *testing.T) {
	d := NewDraft("Ann")
	d.Begin()
	d.Set("An")
	d.Sync("Annie")
	if d.Value() != "An" {
		t.Fatalf("sync overwrote an active edit: %q", d.Value())
	}
	d.End()
	d.Sync("Annie")
	if d.Value() != "Annie" {
		t.Fatalf("value = %q", d.Value())
	}
	d.Set("Bob")
	d.Revert()
	if d.Value() != "Annie" {
		t.Fatalf("revert = %q", d.Value())
	}
}

func TestApplyRevertsOnError(t *testing.T) {
	d := NewDraft(10.0)
	boom := errors.New("boom")
	_, err := Apply(context.Background(), d, 12.5, func(context.Context, float64) (bool, error) {
		if d.Value() != 12.5 {
			t.Fatalf("draft not optimistic during commit: %v", d.Value())
		}
		return false, boom
	})
	if !errors.Is(err, boom) || d.Value() != 10 {
		t.Fatalf("err=%v value=%v", err, d.Value())
	}

	written, err := Apply(context.Background(), d, 11.0, func(context.Context, float64) (bool, error) { return true, nil })
	if err != nil || !written || d.Value() != 11 {
		t.Fatalf("written=%v err=%v value=%v", written, err, d.Value())
	}
}
