package roompush

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"chiptally/internal/app/rooms"
	"chiptally/internal/room"
	"chiptally/internal/roompush/platforms"
	"chiptally/internal/store"
	"chiptally/internal/subscription"

	"github.com/coder/quartz"
)

type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (s *sequenceIDs) RoomID() string { return "ABCDEF" }

func (s *sequenceIDs) PlayerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("player_%08d", s.next)
}

func (s *sequenceIDs) HistoryID(time.Time) string { return "history_created" }

func (m *Manager) standings(roomID string) (FormattedMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	panel, ok := m.panelByRoom[roomID]
	if !ok {
		return FormattedMessage{}, false
	}
	return panel.msg, true
}

func (m *Manager) watchedRooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		out = append(out, id)
	}
	return out
}

func descriptions(msgs []platforms.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, msg.Description)
	}
	return out
}

func hasPanel(msgs []platforms.Message, description string) bool {
	for _, msg := range msgs {
		if msg.PanelKey == "room:ABCDEF" && msg.Description == description {
			return true
		}
	}
	return false
}

func TestManagerPushesHistoryAndStandings(t *testing.T) {
	mem := store.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })
	clock := quartz.NewMock(t)
	svc := rooms.NewService(mem, rooms.Options{Clock: clock, IDs: &sequenceIDs{}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := svc.CreateRoom(ctx, "Ana"); err != nil {
		t.Fatalf("create room: %v", err)
	}

	cfg := Config{
		Enabled:             true,
		Targets:             []PushTarget{testTarget},
		Workers:             1,
		PanelUpdateInterval: time.Minute,
	}
	m := NewManager(cfg, mem, WithClock(clock))
	fake := &fakeAdapter{}
	m.adapters = map[string]platforms.Adapter{"fake": fake}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "initial panel", func() bool {
		_, ok := m.standings("ABCDEF")
		return ok
	})

	if _, err := svc.AddPlayer(ctx, "ABCDEF", "Bo"); err != nil {
		t.Fatalf("add player: %v", err)
	}
	waitFor(t, "join message", func() bool {
		for _, d := range descriptions(fake.Messages()) {
			if d == "Bo joined the room" {
				return true
			}
		}
		return false
	})
	for _, d := range descriptions(fake.Messages()) {
		if strings.Contains(d, "created the room") {
			t.Fatalf("history present before the first view must not be pushed")
		}
	}

	waitFor(t, "panel with both players", func() bool {
		msg, _ := m.standings("ABCDEF")
		return len(msg.Fields) == 3
	})
	clock.Advance(time.Minute).MustWait(ctx)
	waitFor(t, "standings panel", func() bool { return hasPanel(fake.Messages(), "balanced") })

	if err := mem.Remove(ctx, room.Path("ABCDEF")); err != nil {
		t.Fatalf("remove room: %v", err)
	}
	waitFor(t, "closed panel queued", func() bool {
		msg, _ := m.standings("ABCDEF")
		return msg.Description == "room closed"
	})
	clock.Advance(time.Minute).MustWait(ctx)
	waitFor(t, "closed panel sent", func() bool { return hasPanel(fake.Messages(), "room closed") })
	waitFor(t, "panel forgotten", func() bool { return len(fake.Forgotten()) == 1 })
}

func TestManagerStartRequiresStore(t *testing.T) {
	m := NewManager(Config{Enabled: true}, nil)
	if err := m.Start(context.Background()); err != subscription.ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err := NewManager(Config{}, nil).Start(context.Background()); err != nil {
		t.Fatalf("disabled manager should start as a no-op: %v", err)
	}
}

func TestManagerReloadsTargets(t *testing.T) {
	mem := store.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })
	clock := quartz.NewMock(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "targets.json")
	write := func(roomID string) {
		raw := fmt.Sprintf(`[{"platform":"fake","endpoint":"https://x","room_id":%q,"enabled":true}]`, roomID)
		if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
			t.Fatalf("write targets: %v", err)
		}
	}
	write("ABCDEF")
	targets, err := parseTargetsJSON([]byte(`[{"platform":"fake","endpoint":"https://x","room_id":"ABCDEF","enabled":true}]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	m := NewManager(Config{
		Enabled:             true,
		ConfigPath:          path,
		ConfigReload:        time.Second,
		Targets:             targets,
		PanelUpdateInterval: time.Hour,
	}, mem, WithClock(clock))
	m.adapters = map[string]platforms.Adapter{"fake": &fakeAdapter{}}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := m.watchedRooms(); len(got) != 1 || got[0] != "ABCDEF" {
		t.Fatalf("watched=%v", got)
	}

	write("GHIJKL")
	clock.Advance(time.Second).MustWait(ctx)
	if got := m.watchedRooms(); len(got) != 1 || got[0] != "GHIJKL" {
		t.Fatalf("watched after reload=%v", got)
	}
}
