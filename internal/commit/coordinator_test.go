package commit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"chiptally/internal/room"
	"chiptally/internal/store"

	"github.com/coder/quartz"
)

// recordingStore captures every MultiUpdate and can fail chosen paths.
type recordingStore struct {
	store.Store

	mu      sync.Mutex
	calls   []map[string]any
	failing func(updates map[string]any) error
}

func (r *recordingStore) MultiUpdate(_ context.Context, updates map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		if err := r.failing(updates); err != nil {
			return err
		}
	}
	cp := make(map[string]any, len(updates))
	for k, v := range updates {
		cp[k] = v
	}
	r.calls = append(r.calls, cp)
	return nil
}

func (r *recordingStore) Calls() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]any(nil), r.calls...)
}

const roomID = "ABCDEF"

var cfg = room.Config{ChipsPerHand: 500, ChipValue: 0.1, DisplayMode: room.DisplayChip}

func newTestCoordinator(t *testing.T, rs *recordingStore) (*Coordinator, *quartz.Mock) {
	t.Helper()
	clock := quartz.NewMock(t)
	return New(rs, WithClock(clock)), clock
}

func TestCommitHandsRederivesAndClearsOverride(t *testing.T) {
	rs := &recordingStore{}
	c, clock := newTestCoordinator(t, rs)
	p := room.Player{ID: "p1", Name: "Ann", Hands: 2, BuyInChips: 777, BuyInOverride: true}

	written, err := c.CommitHands(context.Background(), roomID, cfg, p, 2.6)
	if err != nil || !written {
		t.Fatalf("CommitHands = %v, %v", written, err)
	}
	calls := rs.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d", len(calls))
	}
	got := calls[0]
	if got["rooms/ABCDEF/players/p1/hands"] != 3 ||
		got["rooms/ABCDEF/players/p1/buyInChips"] != float64(1500) ||
		got["rooms/ABCDEF/players/p1/buyInOverride"] != false {
		t.Fatalf("update = %#v", got)
	}
	if got["rooms/ABCDEF/updatedAt"] != clock.Now().UnixMilli() {
		t.Fatalf("updatedAt missing: %#v", got)
	}
}

func TestIdempotentCommitsIssueNoWrite(t *testing.T) {
	rs := &recordingStore{}
	c, _ := newTestCoordinator(t, rs)
	ctx := context.Background()
	p := room.Player{ID: "p1", Name: "Ann", Hands: 2, CurrentChips: 1200, BuyInChips: 900, BuyInOverride: true}

	checks := []struct {
		name string
		run  func() (bool, error)
	}{
		{name: "name", run: func() (bool, error) { return c.CommitName(ctx, roomID, p, "  Ann ") }},
		{name: "hands", run: func() (bool, error) { return c.CommitHands(ctx, roomID, cfg, p, 2.2) }},
		{name: "chips", run: func() (bool, error) { return c.CommitCurrentChips(ctx, roomID, p, 1200.00001) }},
		{name: "buy-in", run: func() (bool, error) { return c.CommitBuyIn(ctx, roomID, p, 900.004) }},
		{name: "override", run: func() (bool, error) { return c.ToggleBuyInOverride(ctx, roomID, cfg, p, true) }},
		{name: "config", run: func() (bool, error) {
			v := 500.0
			return c.UpdateRoomConfig(ctx, room.Data{ID: roomID, Config: cfg}, ConfigPatch{ChipsPerHand: &v})
		}},
	}
	for _, tt := range checks {
		written, err := tt.run()
		if err != nil || written {
			t.Fatalf("%s: written=%v err=%v", tt.name, written, err)
		}
	}
	if n := len(rs.Calls()); n != 0 {
		t.Fatalf("store saw %d writes", n)
	}
}

func TestValidationNeverReachesStore(t *testing.T) {
	rs := &recordingStore{}
	c, _ := newTestCoordinator(t, rs)
	ctx := context.Background()
	p := room.Player{ID: "p1", Name: "Ann", Hands: 1}
	bad := -1.0

	if _, err := c.CommitName(ctx, roomID, p, "   "); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("name err = %v", err)
	}
	if _, err := c.CommitCurrentChips(ctx, roomID, p, nan()); !errors.Is(err, ErrInvalidNumber) {
		t.Fatalf("chips err = %v", err)
	}
	if _, err := c.CommitBuyIn(ctx, roomID, p, -5); !errors.Is(err, ErrInvalidNumber) {
		t.Fatalf("buy-in err = %v", err)
	}
	if _, err := c.UpdateRoomConfig(ctx, room.Data{ID: roomID, Config: cfg}, ConfigPatch{ChipValue: &bad}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("config err = %v", err)
	}
	if _, err := c.AddPlayer(ctx, roomID, cfg, ""); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("add err = %v", err)
	}
	if n := len(rs.Calls()); n != 0 {
		t.Fatalf("store saw %d writes", n)
	}
}

func TestCommitChipsRoundsToCents(t *testing.T) {
	rs := &recordingStore{}
	c, _ := newTestCoordinator(t, rs)
	if _, err := c.CommitCurrentChips(context.Background(), roomID, room.Player{ID: "p1"}, 12.346); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := rs.Calls()[0]["rooms/ABCDEF/players/p1/currentChips"]; got != 12.35 {
		t.Fatalf("currentChips = %v", got)
	}
}

func TestToggleOverride(t *testing.T) {
	rs := &recordingStore{}
	c, _ := newTestCoordinator(t, rs)
	ctx := context.Background()
	p := room.Player{ID: "p1", Hands: 3, BuyInChips: 1000, BuyInOverride: true}

	if _, err := c.ToggleBuyInOverride(ctx, roomID, cfg, p, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	got := rs.Calls()[0]
	if got["rooms/ABCDEF/players/p1/buyInChips"] != float64(1500) || got["rooms/ABCDEF/players/p1/buyInOverride"] != false {
		t.Fatalf("disable update = %#v", got)
	}

	p.BuyInOverride = false
	if _, err := c.ToggleBuyInOverride(ctx, roomID, cfg, p, true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	got = rs.Calls()[1]
	if _, ok := got["rooms/ABCDEF/players/p1/buyInChips"]; ok {
		t.Fatalf("enable must keep buy-in: %#v", got)
	}
}

func TestUpdateRoomConfigFansOutToNonOverridePlayers(t *testing.T) {
	rs := &recordingStore{}
	c, _ := newTestCoordinator(t, rs)
	data := room.Data{
		ID:     roomID,
		Config: cfg,
		Players: []room.Player{
			{ID: "p1", Hands: 2, BuyInChips: 1000},
			{ID: "p2", Hands: 3, BuyInChips: 1500},
			{ID: "p3", Hands: 4, BuyInChips: 42, BuyInOverride: true},
		},
	}
	v := 600.0
	written, err := c.UpdateRoomConfig(context.Background(), data, ConfigPatch{ChipsPerHand: &v})
	if err != nil || !written {
		t.Fatalf("UpdateRoomConfig = %v, %v", written, err)
	}
	calls := rs.Calls()
	if len(calls) != 3 {
		t.Fatalf("calls = %d, want config write + 2 player writes", len(calls))
	}
	if calls[0]["rooms/ABCDEF/config/chipsPerHand"] != 600.0 {
		t.Fatalf("config write = %#v", calls[0])
	}
	buyIns := map[string]any{}
	for _, call := range calls[1:] {
		for k, val := range call {
			if strings.HasSuffix(k, "/buyInChips") {
				buyIns[k] = val
			}
		}
	}
	if len(buyIns) != 2 ||
		buyIns["rooms/ABCDEF/players/p1/buyInChips"] != float64(1200) ||
		buyIns["rooms/ABCDEF/players/p2/buyInChips"] != float64(1800) {
		t.Fatalf("buy-in writes = %#v", buyIns)
	}
}

func TestUpdateRoomConfigChipValueOnlyDoesNotFanOut(t *testing.T) {
	rs := &recordingStore{}
	c, _ := newTestCoordinator(t, rs)
	v := 0.5
	mode := room.DisplayCash
	data := room.Data{ID: roomID, Config: cfg, Players: []room.Player{{ID: "p1", Hands: 2}}}
	if _, err := c.UpdateRoomConfig(context.Background(), data, ConfigPatch{ChipValue: &v, DisplayMode: &mode}); err != nil {
		t.Fatalf("update: %v", err)
	}
	calls := rs.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %#v", calls)
	}
	if calls[0]["rooms/ABCDEF/config/displayMode"] != "cash" || calls[0]["rooms/ABCDEF/config/chipValue"] != 0.5 {
		t.Fatalf("update = %#v", calls[0])
	}
}

func TestFanOutAggregatesEveryFailure(t *testing.T) {
	boom := errors.New("write rejected")
	rs := &recordingStore{failing: func(updates map[string]any) error {
		for k := range updates {
			if strings.Contains(k, "/players/p1/") || strings.Contains(k, "/players/p3/") {
				return boom
			}
		}
		return nil
	}}
	c, _ := newTestCoordinator(t, rs)
	data := room.Data{ID: roomID, Config: cfg, Players: []room.Player{
		{ID: "p1", Hands: 1}, {ID: "p2", Hands: 1}, {ID: "p3", Hands: 1},
	}}
	v := 100.0
	written, err := c.UpdateRoomConfig(context.Background(), data, ConfigPatch{ChipsPerHand: &v})
	if !written {
		t.Fatal("config write should be reported as written")
	}
	var fe *FanOutError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FanOutError", err)
	}
	if fe.Attempts != 3 || len(fe.Failures) != 2 {
		t.Fatalf("fan-out error = %+v", fe)
	}
	if fe.Failures[0].PlayerID != "p1" || fe.Failures[1].PlayerID != "p3" {
		t.Fatalf("failures = %v", fe)
	}
	if !errors.Is(err, boom) {
		t.Fatal("fan-out error does not wrap the store error")
	}
	if n := len(rs.Calls()); n != 2 {
		t.Fatalf("successful writes = %d, want config + p2", n)
	}
}

func TestAdjustHandsRevertsDraftOnFailure(t *testing.T) {
	boom := errors.New("offline")
	rs := &recordingStore{}
	c, _ := newTestCoordinator(t, rs)
	p := room.Player{ID: "p1", Hands: 3}
	draft := NewDraft(p.Hands)
	ctx := context.Background()

	if _, err := c.AdjustHands(ctx, roomID, cfg, p, 1, draft); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if draft.Value() != 4 {
		t.Fatalf("draft = %d, want 4", draft.Value())
	}
	if _, err := c.AdjustHands(ctx, roomID, cfg, p, 1, draft); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if draft.Value() != 5 || rs.Calls()[1]["rooms/ABCDEF/players/p1/hands"] != 5 {
		t.Fatalf("second tap did not build on draft: %d %#v", draft.Value(), rs.Calls())
	}

	rs.failing = func(map[string]any) error { return boom }
	_, err := c.AdjustHands(ctx, roomID, cfg, p, 1, draft)
	var ce *CommitError
	if !errors.As(err, &ce) || !errors.Is(err, boom) || ce.Op != "commit_hands" {
		t.Fatalf("err = %v", err)
	}
	if draft.Value() != 3 {
		t.Fatalf("draft after failure = %d, want server value 3", draft.Value())
	}
}

func TestAdjustHandsClampsAtZero(t *testing.T) {
	rs := &recordingStore{}
	c, _ := newTestCoordinator(t, rs)
	if _, err := c.AdjustHands(context.Background(), roomID, cfg, room.Player{ID: "p1", Hands: 1}, -3, nil); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if got := rs.Calls()[0]["rooms/ABCDEF/players/p1/hands"]; got != 0 {
		t.Fatalf("hands = %v", got)
	}
}

func TestAddAndDeletePlayer(t *testing.T) {
	mem := store.NewMemory()
	defer mem.Close()
	clock := quartz.NewMock(t)
	c := New(mem, WithClock(clock), WithIDs(fixedIDs{player: "player_00000001"}))
	ctx := context.Background()

	p, err := c.AddPlayer(ctx, roomID, cfg, "  Dan ")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if p.Name != "Dan" || p.Hands != 1 || p.CurrentChips != 500 || p.BuyInChips != 500 || p.Order != clock.Now().UnixMilli() {
		t.Fatalf("player = %+v", p)
	}
	v, ok, err := mem.ReadOnce(ctx, "rooms/ABCDEF/players/player_00000001/name")
	if err != nil || !ok || v != "Dan" {
		t.Fatalf("stored name = %v %v %v", v, ok, err)
	}
	if err := c.DeletePlayer(ctx, roomID, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := mem.ReadOnce(ctx, "rooms/ABCDEF/players/player_00000001"); ok {
		t.Fatal("player still stored")
	}
	if _, ok, _ := mem.ReadOnce(ctx, "rooms/ABCDEF/updatedAt"); !ok {
		t.Fatal("delete did not touch updatedAt")
	}
}

func loadRoom(t *testing.T, st store.Store, clock quartz.Clock) room.Data {
	t.Helper()
	v, ok, err := st.ReadOnce(context.Background(), room.Path(roomID))
	if err != nil || !ok {
		t.Fatalf("read room: %v %v", ok, err)
	}
	snap, err := room.DecodeSnapshot(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return room.Normalize(roomID, snap, clock.Now())
}

func TestAdjustHandsUndoBeforeSnapshotReachesStore(t *testing.T) {
	mem := store.NewMemory()
	defer mem.Close()
	clock := quartz.NewMock(t)
	c := New(mem, WithClock(clock))
	ctx := context.Background()
	p := room.Player{ID: "p1", Name: "Ann", Hands: 2, BuyInChips: 1000}
	if err := mem.MultiUpdate(ctx, map[string]any{room.PlayerPath(roomID, p.ID): p}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	draft := NewDraft(p.Hands)

	// Both taps use the same stale player; no snapshot arrives in between.
	if written, err := c.AdjustHands(ctx, roomID, cfg, p, 1, draft); err != nil || !written {
		t.Fatalf("+1 = %v, %v", written, err)
	}
	if written, err := c.AdjustHands(ctx, roomID, cfg, p, -1, draft); err != nil || !written {
		t.Fatalf("-1 = %v, %v", written, err)
	}
	if draft.Value() != 2 {
		t.Fatalf("draft = %d, want 2", draft.Value())
	}
	stored := loadRoom(t, mem, clock)
	got, _ := stored.Player("p1")
	if got.Hands != 2 || got.BuyInChips != 1000 {
		t.Fatalf("stored player = %+v, want 2 hands / 1000", got)
	}
}

func TestUpdateRoomConfigRepairsDefaultedConfig(t *testing.T) {
	mem := store.NewMemory()
	defer mem.Close()
	clock := quartz.NewMock(t)
	c := New(mem, WithClock(clock))
	ctx := context.Background()
	if err := mem.MultiUpdate(ctx, map[string]any{
		room.Path(roomID, "config"):     map[string]any{"chipsPerHand": 500.0},
		room.PlayerPath(roomID, "p1"): room.Player{ID: "p1", Name: "Ann", Hands: 2, BuyInChips: 1000},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	data := loadRoom(t, mem, clock)
	if !data.ConfigDefaulted {
		t.Fatal("config missing chipValue was not flagged as defaulted")
	}

	v := 600.0
	written, err := c.UpdateRoomConfig(ctx, data, ConfigPatch{ChipsPerHand: &v})
	if err != nil || !written {
		t.Fatalf("UpdateRoomConfig = %v, %v", written, err)
	}
	after := loadRoom(t, mem, clock)
	if after.ConfigDefaulted {
		t.Fatalf("config still defaulted: %+v", after.Config)
	}
	if after.Config.ChipsPerHand != 600 || after.Config.ChipValue != room.DefaultChipValue || after.Config.DisplayMode != room.DisplayChip {
		t.Fatalf("config = %+v", after.Config)
	}
	p, _ := after.Player("p1")
	if p.BuyInChips != 1200 {
		t.Fatalf("buyInChips = %v, want 1200", p.BuyInChips)
	}
}
