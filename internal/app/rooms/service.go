package rooms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chiptally/internal/commit"
	"chiptally/internal/ids"
	"chiptally/internal/ledger"
	"chiptally/internal/room"
	"chiptally/internal/store"

	"github.com/coder/quartz"
	"github.com/rs/zerolog/log"
)

const defaultCreateAttempts = 10

type Options struct {
	IDs            ids.Provider
	Clock          quartz.Clock
	TTL            time.Duration
	CreateAttempts int
}

// Service performs room operations on behalf of remote callers: it loads the
// current room, then delegates edits to the commit coordinator.
type Service struct {
	store    store.Store
	commits  *commit.Coordinator
	ids      ids.Provider
	clock    quartz.Clock
	ttl      time.Duration
	attempts int
}

func NewService(st store.Store, opts Options) *Service {
	if opts.IDs == nil {
		opts.IDs = ids.Default()
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.TTL <= 0 {
		opts.TTL = room.DefaultTTL
	}
	if opts.CreateAttempts <= 0 {
		opts.CreateAttempts = defaultCreateAttempts
	}
	return &Service{
		store:    st,
		commits:  commit.New(st, commit.WithClock(opts.Clock), commit.WithIDs(opts.IDs)),
		ids:      opts.IDs,
		clock:    opts.Clock,
		ttl:      opts.TTL,
		attempts: opts.CreateAttempts,
	}
}

// Store exposes the backing store to transports that serve raw paths.
func (s *Service) Store() store.Store { return s.store }

// CreateRoom picks an unused room id and writes the whole initial room in one
// call. With a host name the room starts with that player.
func (s *Service) CreateRoom(ctx context.Context, hostName string) (*CreateRoomResponse, error) {
	roomID, err := s.freeRoomID(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	cfg := room.DefaultConfig(now)
	doc := map[string]any{
		"config":    cfg,
		"updatedAt": now.UnixMilli(),
		"expiresAt": now.Add(s.ttl).UnixMilli(),
	}
	resp := &CreateRoomResponse{RoomID: roomID}
	if hostName = strings.TrimSpace(hostName); hostName != "" {
		host := commit.NewPlayer(s.ids.PlayerID(), hostName, cfg, now.UnixMilli())
		doc["players"] = map[string]any{host.ID: host}
		entry := room.HistoryEntry{ID: s.ids.HistoryID(now), Message: host.Name + " created the room", Timestamp: now.UnixMilli()}
		doc["history"] = map[string]any{entry.ID: entry}
		resp.Host = &host
	}
	if err := s.store.Write(ctx, room.Path(roomID), doc); err != nil {
		return nil, fmt.Errorf("create room %s: %w", roomID, err)
	}
	metricRoomsCreated.Add(1)
	log.Info().Str("room_id", roomID).Bool("with_host", resp.Host != nil).Msg("room created")
	return resp, nil
}

func (s *Service) freeRoomID(ctx context.Context) (string, error) {
	for i := 0; i < s.attempts; i++ {
		candidate := s.ids.RoomID()
		_, exists, err := s.store.ReadOnce(ctx, room.Path(candidate))
		if err != nil {
			return "", fmt.Errorf("probe room %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		log.Debug().Str("room_id", candidate).Int("attempt", i+1).Msg("room id taken")
	}
	log.Warn().Int("attempts", s.attempts).Msg("room id space exhausted")
	return "", ErrRoomIDExhausted
}

// Room loads and normalizes one room.
func (s *Service) Room(ctx context.Context, roomID string) (*RoomView, error) {
	data, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return view(data), nil
}

func view(data room.Data) *RoomView {
	totals := ledger.ComputeTotals(data.Players, data.Config)
	return &RoomView{
		Room:   data,
		Totals: totals,
		Status: ledger.BalanceStatus(totals, data.Config.DisplayMode, data.Config.ChipValue),
		Hint:   ledger.Hint(data.Config),
	}
}

func (s *Service) load(ctx context.Context, roomID string) (room.Data, error) {
	if !ids.ValidRoomID(roomID) {
		return room.Data{}, ErrInvalidRequest
	}
	value, exists, err := s.store.ReadOnce(ctx, room.Path(roomID))
	if err != nil {
		return room.Data{}, err
	}
	if !exists {
		return room.Data{}, ErrRoomNotFound
	}
	snap, err := room.DecodeSnapshot(value)
	if err != nil {
		return room.Data{}, err
	}
	return room.Normalize(roomID, snap, s.clock.Now()), nil
}

func (s *Service) loadPlayer(ctx context.Context, roomID, playerID string) (room.Data, room.Player, error) {
	data, err := s.load(ctx, roomID)
	if err != nil {
		return room.Data{}, room.Player{}, err
	}
	p, ok := data.Player(playerID)
	if !ok {
		return room.Data{}, room.Player{}, ErrPlayerNotFound
	}
	return data, p, nil
}

func (s *Service) AddPlayer(ctx context.Context, roomID, name string) (room.Player, error) {
	data, err := s.load(ctx, roomID)
	if err != nil {
		return room.Player{}, err
	}
	return s.commits.AddPlayer(ctx, roomID, data.Config, name)
}

func (s *Service) DeletePlayer(ctx context.Context, roomID, playerID string) error {
	if _, _, err := s.loadPlayer(ctx, roomID, playerID); err != nil {
		return err
	}
	return s.commits.DeletePlayer(ctx, roomID, playerID)
}

// UpdatePlayer applies the single edit in patch.
func (s *Service) UpdatePlayer(ctx context.Context, roomID, playerID string, patch PlayerPatch) (bool, error) {
	data, p, err := s.loadPlayer(ctx, roomID, playerID)
	if err != nil {
		return false, err
	}
	cfg := data.Config
	switch {
	case patch.Name != nil:
		return s.commits.CommitName(ctx, roomID, p, *patch.Name)
	case patch.Hands != nil:
		return s.commits.CommitHands(ctx, roomID, cfg, p, *patch.Hands)
	case patch.AdjustHands != nil:
		return s.commits.AdjustHands(ctx, roomID, cfg, p, *patch.AdjustHands, nil)
	case patch.CurrentChips != nil:
		return s.commits.CommitCurrentChips(ctx, roomID, p, *patch.CurrentChips)
	case patch.BuyInChips != nil:
		return s.commits.CommitBuyIn(ctx, roomID, p, *patch.BuyInChips)
	case patch.BuyInOverride != nil:
		return s.commits.ToggleBuyInOverride(ctx, roomID, cfg, p, *patch.BuyInOverride)
	default:
		return false, ErrInvalidRequest
	}
}

func (s *Service) UpdateSettings(ctx context.Context, roomID string, patch commit.ConfigPatch) (bool, error) {
	data, err := s.load(ctx, roomID)
	if err != nil {
		return false, err
	}
	return s.commits.UpdateRoomConfig(ctx, data, patch)
}

// IsNotFound reports whether err means the room or player does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRoomNotFound) || errors.Is(err, ErrPlayerNotFound)
}
