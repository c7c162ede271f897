// Package commit turns single field edits into atomic store updates.
package commit

import (
	"context"
	"math"
	"strings"

	"chiptally/internal/ids"
	"chiptally/internal/ledger"
	"chiptally/internal/room"
	"chiptally/internal/store"

	"github.com/coder/quartz"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Option func(*Coordinator)

func WithClock(clock quartz.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

func WithIDs(p ids.Provider) Option {
	return func(c *Coordinator) { c.ids = p }
}

// Coordinator writes edits to the store. Every mutating call returns whether
// a write was issued; validation failures never reach the store. Concurrent
// commits are last-write-wins per field.
type Coordinator struct {
	store store.Store
	clock quartz.Clock
	ids   ids.Provider
}

func New(st store.Store, opts ...Option) *Coordinator {
	c := &Coordinator{store: st, clock: quartz.NewReal(), ids: ids.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConfigPatch holds the settings a caller wants to change; nil fields are
// left alone.
type ConfigPatch struct {
	ChipsPerHand *float64          `json:"chipsPerHand,omitempty"`
	ChipValue    *float64          `json:"chipValue,omitempty"`
	DisplayMode  *room.DisplayMode `json:"displayMode,omitempty"`
}

func (c *Coordinator) CommitName(ctx context.Context, roomID string, p room.Player, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, ErrEmptyName
	}
	if name == p.Name {
		return c.noop()
	}
	return c.writePlayer(ctx, "commit_name", roomID, p.ID, map[string]any{"name": name})
}

// CommitHands stores a new hand count and re-derives the buy-in. A hands edit
// always clears override mode.
func (c *Coordinator) CommitHands(ctx context.Context, roomID string, cfg room.Config, p room.Player, hands float64) (bool, error) {
	if !finite(hands) {
		return false, ErrInvalidNumber
	}
	next := int(math.Round(hands))
	if next < 0 {
		next = 0
	}
	if next == p.Hands {
		return c.noop()
	}
	return c.writePlayer(ctx, "commit_hands", roomID, p.ID, map[string]any{
		"hands":         next,
		"buyInChips":    ledger.DerivedBuyIn(next, cfg.ChipsPerHand),
		"buyInOverride": false,
	})
}

// AdjustHands commits p.Hands+delta. When draft is given it shows the new
// count immediately and is reverted if the write fails; repeated adjustments
// build on the draft rather than the last server value, and the no-op check
// compares against that same base.
func (c *Coordinator) AdjustHands(ctx context.Context, roomID string, cfg room.Config, p room.Player, delta int, draft *Draft[int]) (bool, error) {
	if draft != nil {
		p.Hands = draft.Value()
	}
	next := max(p.Hands+delta, 0)
	commit := func(ctx context.Context, v int) (bool, error) {
		return c.CommitHands(ctx, roomID, cfg, p, float64(v))
	}
	if draft == nil {
		return commit(ctx, next)
	}
	return Apply(ctx, draft, next, commit)
}

func (c *Coordinator) CommitCurrentChips(ctx context.Context, roomID string, p room.Player, chips float64) (bool, error) {
	if !finite(chips) {
		return false, ErrInvalidNumber
	}
	chips = ledger.Round2(chips)
	if ledger.IsZero(chips - p.CurrentChips) {
		return c.noop()
	}
	return c.writePlayer(ctx, "commit_current_chips", roomID, p.ID, map[string]any{"currentChips": chips})
}

// CommitBuyIn stores a manual buy-in and switches the player to override mode.
func (c *Coordinator) CommitBuyIn(ctx context.Context, roomID string, p room.Player, chips float64) (bool, error) {
	if !finite(chips) || chips < 0 {
		return false, ErrInvalidNumber
	}
	chips = ledger.Round2(chips)
	if p.BuyInOverride && ledger.IsZero(chips-p.BuyInChips) {
		return c.noop()
	}
	return c.writePlayer(ctx, "commit_buy_in", roomID, p.ID, map[string]any{
		"buyInChips":    chips,
		"buyInOverride": true,
	})
}

// ToggleBuyInOverride flips override mode. Disabling it re-derives the buy-in
// in the same write; enabling keeps the stored value.
func (c *Coordinator) ToggleBuyInOverride(ctx context.Context, roomID string, cfg room.Config, p room.Player, enabled bool) (bool, error) {
	if enabled == p.BuyInOverride {
		return c.noop()
	}
	fields := map[string]any{"buyInOverride": enabled}
	if !enabled {
		fields["buyInChips"] = ledger.DerivedBuyIn(p.Hands, cfg.ChipsPerHand)
	}
	return c.writePlayer(ctx, "toggle_buy_in_override", roomID, p.ID, fields)
}

// UpdateRoomConfig writes the changed settings, or the whole config when the
// stored one was defaulted on read. When chipsPerHand changes,
// every non-override player's buy-in is rewritten concurrently; all writes
// settle before it returns and failures come back as a *FanOutError.
func (c *Coordinator) UpdateRoomConfig(ctx context.Context, data room.Data, patch ConfigPatch) (bool, error) {
	if data.ID == "" {
		return false, ErrMissingRoomID
	}
	next := data.Config
	if patch.ChipsPerHand != nil {
		next.ChipsPerHand = *patch.ChipsPerHand
	}
	if patch.ChipValue != nil {
		next.ChipValue = *patch.ChipValue
	}
	if patch.DisplayMode != nil {
		next.DisplayMode = *patch.DisplayMode
	}
	if !room.ValidConfig(next) {
		return false, ErrInvalidConfig
	}

	updates := map[string]any{}
	if data.ConfigDefaulted {
		// Partial writes would leave the stored config unreadable.
		updates[room.ConfigPath(data.ID, "chipsPerHand")] = next.ChipsPerHand
		updates[room.ConfigPath(data.ID, "chipValue")] = next.ChipValue
		updates[room.ConfigPath(data.ID, "displayMode")] = string(next.DisplayMode)
		updates[room.ConfigPath(data.ID, "createdAt")] = next.CreatedAt
	}
	if patch.ChipsPerHand != nil && next.ChipsPerHand != data.Config.ChipsPerHand {
		updates[room.ConfigPath(data.ID, "chipsPerHand")] = next.ChipsPerHand
	}
	if patch.ChipValue != nil && next.ChipValue != data.Config.ChipValue {
		updates[room.ConfigPath(data.ID, "chipValue")] = next.ChipValue
	}
	if patch.DisplayMode != nil && next.DisplayMode != data.Config.DisplayMode {
		updates[room.ConfigPath(data.ID, "displayMode")] = string(next.DisplayMode)
	}
	if len(updates) == 0 {
		return c.noop()
	}
	if _, err := c.write(ctx, "update_room_config", data.ID, "", updates); err != nil {
		return false, err
	}
	if next.ChipsPerHand != data.Config.ChipsPerHand {
		if err := c.rederiveBuyIns(ctx, data, next.ChipsPerHand); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (c *Coordinator) rederiveBuyIns(ctx context.Context, data room.Data, chipsPerHand float64) error {
	var targets []room.Player
	for _, p := range data.Players {
		if !p.BuyInOverride {
			targets = append(targets, p)
		}
	}
	if len(targets) == 0 {
		return nil
	}
	errs := make([]error, len(targets))
	var g errgroup.Group
	for i, p := range targets {
		g.Go(func() error {
			_, errs[i] = c.writePlayer(ctx, "rederive_buy_in", data.ID, p.ID, map[string]any{
				"buyInChips": ledger.DerivedBuyIn(p.Hands, chipsPerHand),
			})
			return nil
		})
	}
	_ = g.Wait()
	metricFanOutWrites.Add(int64(len(targets)))

	fe := &FanOutError{RoomID: data.ID, Attempts: len(targets)}
	for i, err := range errs {
		if err != nil {
			fe.Failures = append(fe.Failures, &PlayerWriteError{PlayerID: targets[i].ID, Err: err})
		}
	}
	if len(fe.Failures) == 0 {
		return nil
	}
	metricFanOutFailures.Add(int64(len(fe.Failures)))
	log.Error().Str("room_id", data.ID).Int("failed", len(fe.Failures)).Int("attempted", fe.Attempts).
		Err(fe.Joined()).Msg("buy-in fan-out incomplete")
	return fe
}

// AddPlayer creates a player with one hand bought in.
func (c *Coordinator) AddPlayer(ctx context.Context, roomID string, cfg room.Config, name string) (room.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return room.Player{}, ErrEmptyName
	}
	if !ids.ValidRoomID(roomID) {
		return room.Player{}, ErrMissingRoomID
	}
	p := NewPlayer(c.ids.PlayerID(), name, cfg, c.clock.Now().UnixMilli())
	if _, err := c.write(ctx, "add_player", roomID, p.ID, map[string]any{
		room.PlayerPath(roomID, p.ID): p,
	}); err != nil {
		return room.Player{}, err
	}
	return p, nil
}

// NewPlayer is a fresh player holding one hand.
func NewPlayer(id, name string, cfg room.Config, order int64) room.Player {
	return room.Player{
		ID:           id,
		Name:         name,
		Hands:        1,
		CurrentChips: cfg.ChipsPerHand,
		BuyInChips:   cfg.ChipsPerHand,
		Order:        order,
	}
}

func (c *Coordinator) DeletePlayer(ctx context.Context, roomID, playerID string) error {
	if playerID == "" {
		return ErrPlayerNotFound
	}
	_, err := c.write(ctx, "delete_player", roomID, playerID, map[string]any{
		room.PlayerPath(roomID, playerID): nil,
	})
	return err
}

func (c *Coordinator) writePlayer(ctx context.Context, op, roomID, playerID string, fields map[string]any) (bool, error) {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[room.PlayerFieldPath(roomID, playerID, k)] = v
	}
	return c.write(ctx, op, roomID, playerID, updates)
}

// write applies updates together with the updatedAt touch in one call.
func (c *Coordinator) write(ctx context.Context, op, roomID, playerID string, updates map[string]any) (bool, error) {
	if !ids.ValidRoomID(roomID) {
		return false, ErrMissingRoomID
	}
	updates[room.UpdatedAtPath(roomID)] = c.clock.Now().UnixMilli()
	metricCommitTotal.Add(1)
	if err := c.store.MultiUpdate(ctx, updates); err != nil {
		metricCommitErrors.Add(1)
		log.Warn().Err(err).Str("op", op).Str("room_id", roomID).Str("player_id", playerID).Msg("commit failed")
		return false, &CommitError{Op: op, RoomID: roomID, PlayerID: playerID, Err: err}
	}
	return true, nil
}

func (c *Coordinator) noop() (bool, error) {
	metricCommitNoop.Add(1)
	return false, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
