package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"chiptally/internal/app/rooms"
	"chiptally/internal/commit"
	"chiptally/internal/ledger"
	"chiptally/internal/room"
	"chiptally/internal/subscription"
)

var errAmbiguousPlayer = errors.New("more than one player has that name")

type CreateCmd struct {
	Host string `help:"host player added to the new room"`
}

func (c *CreateCmd) Run(s *session) error {
	resp, err := s.rooms.CreateRoom(s.ctx, c.Host)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, successStyle.Render("room "+resp.RoomID+" created"))
	return nil
}

type ShowCmd struct {
	Room string `arg:"" help:"room id"`
}

func (c *ShowCmd) Run(s *session) error {
	view, err := s.rooms.Room(s.ctx, c.Room)
	if err != nil {
		return err
	}
	fmt.Fprint(s.out, renderRoom(view.Room, view.Room.History, s.mode))
	return nil
}

type WatchCmd struct {
	Room string `arg:"" help:"room id"`
	Edit bool   `help:"read \"+N <player>\" or \"-N <player>\" lines from stdin to adjust hands"`
}

func (c *WatchCmd) Run(s *session) error {
	ctrl := subscription.New(s.client)
	defer ctrl.Stop()
	w := &watchView{s: s, drafts: newHandDrafts()}

	failed := make(chan error, 1)
	unwatch := ctrl.Watch(func(st subscription.State) {
		switch {
		case st.Err != nil:
			select {
			case failed <- st.Err:
			default:
			}
		case st.Loading:
			fmt.Fprintln(s.out, infoStyle.Render("loading "+st.RoomID+"..."))
		case st.Room != nil:
			w.drafts.sync(st.Room.Players)
			w.render(st)
		}
	})
	defer unwatch()

	ctrl.SetRoom(s.ctx, c.Room)

	var lines <-chan string
	if c.Edit && s.in != nil {
		lines = readLines(s.ctx, s.in)
	}
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case err := <-failed:
			return err
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if err := w.tap(ctrl.State(), line); err != nil {
				fmt.Fprintln(s.out, errorStyle.Render("error: "+describeError(err)))
			}
		}
	}
}

// watchView renders the watched room with drafted hand counts.
type watchView struct {
	s       *session
	drafts  *handDrafts
	commits *commit.Coordinator

	mu sync.Mutex
}

func (w *watchView) render(st subscription.State) {
	if st.Room == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprint(w.s.out, clearScreen+renderRoom(w.drafts.overlay(*st.Room), st.History, w.s.mode))
}

// tap adjusts one player's hands on top of the drafted count, so taps made
// before the server echoes the previous one still add up.
func (w *watchView) tap(st subscription.State, line string) error {
	if st.Room == nil {
		return rooms.ErrRoomNotFound
	}
	delta, ref, err := parseTap(line)
	if err != nil {
		return err
	}
	p, err := resolvePlayer(*st.Room, ref)
	if err != nil {
		return err
	}
	if w.commits == nil {
		w.commits = commit.New(w.s.client)
	}
	d := w.drafts.draft(p)
	d.Begin()
	_, err = w.commits.AdjustHands(w.s.ctx, st.RoomID, st.Room.Config, p, delta, d)
	d.End()
	w.render(st)
	return err
}

func readLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case out <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

type AddCmd struct {
	Room string `arg:"" help:"room id"`
	Name string `arg:"" help:"player name"`
}

func (c *AddCmd) Run(s *session) error {
	p, err := s.rooms.AddPlayer(s.ctx, c.Room, c.Name)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, successStyle.Render(fmt.Sprintf("added %s (%s)", p.Name, p.ID)))
	return nil
}

type RemoveCmd struct {
	Room   string `arg:"" help:"room id"`
	Player string `arg:"" help:"player id or name"`
}

func (c *RemoveCmd) Run(s *session) error {
	_, p, err := s.player(c.Room, c.Player)
	if err != nil {
		return err
	}
	if err := s.rooms.DeletePlayer(s.ctx, c.Room, p.ID); err != nil {
		return err
	}
	fmt.Fprintln(s.out, successStyle.Render("removed "+p.Name))
	return nil
}

type NameCmd struct {
	Room   string `arg:"" help:"room id"`
	Player string `arg:"" help:"player id or name"`
	Name   string `arg:"" help:"new name"`
}

func (c *NameCmd) Run(s *session) error {
	return s.edit(c.Room, c.Player, func(room.Data) (rooms.PlayerPatch, error) {
		return rooms.PlayerPatch{Name: &c.Name}, nil
	})
}

type HandsCmd struct {
	Room   string  `arg:"" help:"room id"`
	Player string  `arg:"" help:"player id or name"`
	Hands  float64 `arg:"" help:"hands bought"`
}

func (c *HandsCmd) Run(s *session) error {
	return s.edit(c.Room, c.Player, func(room.Data) (rooms.PlayerPatch, error) {
		return rooms.PlayerPatch{Hands: &c.Hands}, nil
	})
}

type AdjustCmd struct {
	Room   string `arg:"" help:"room id"`
	Player string `arg:"" help:"player id or name"`
	By     int    `help:"hands to add; negative removes" default:"1"`
}

func (c *AdjustCmd) Run(s *session) error {
	return s.edit(c.Room, c.Player, func(room.Data) (rooms.PlayerPatch, error) {
		return rooms.PlayerPatch{AdjustHands: &c.By}, nil
	})
}

type ChipsCmd struct {
	Room   string `arg:"" help:"room id"`
	Player string `arg:"" help:"player id or name"`
	Amount string `arg:"" help:"chips, or cash in cash mode"`
}

func (c *ChipsCmd) Run(s *session) error {
	return s.edit(c.Room, c.Player, func(data room.Data) (rooms.PlayerPatch, error) {
		v, err := parseAmount(c.Amount, s.mode, data.Config)
		return rooms.PlayerPatch{CurrentChips: &v}, err
	})
}

type BuyinCmd struct {
	Room   string `arg:"" help:"room id"`
	Player string `arg:"" help:"player id or name"`
	Amount string `arg:"" help:"chips, or cash in cash mode"`
}

func (c *BuyinCmd) Run(s *session) error {
	return s.edit(c.Room, c.Player, func(data room.Data) (rooms.PlayerPatch, error) {
		v, err := parseAmount(c.Amount, s.mode, data.Config)
		return rooms.PlayerPatch{BuyInChips: &v}, err
	})
}

type OverrideCmd struct {
	Room   string `arg:"" help:"room id"`
	Player string `arg:"" help:"player id or name"`
	State  string `arg:"" help:"on or off" enum:"on,off"`
}

func (c *OverrideCmd) Run(s *session) error {
	return s.edit(c.Room, c.Player, func(room.Data) (rooms.PlayerPatch, error) {
		on := c.State == "on"
		return rooms.PlayerPatch{BuyInOverride: &on}, nil
	})
}

type SettingsCmd struct {
	Room         string   `arg:"" help:"room id"`
	ChipsPerHand *float64 `help:"chips bought per hand"`
	ChipValue    *float64 `help:"cash value of one chip"`
	DisplayMode  string   `help:"room display mode" enum:",chip,cash" default:""`
}

// Run passes only the flags that were given; an explicit zero is sent and
// rejected rather than read as unset.
func (c *SettingsCmd) Run(s *session) error {
	patch := commit.ConfigPatch{ChipsPerHand: c.ChipsPerHand, ChipValue: c.ChipValue}
	if c.DisplayMode != "" {
		mode := room.DisplayMode(c.DisplayMode)
		patch.DisplayMode = &mode
	}
	written, err := s.rooms.UpdateSettings(s.ctx, c.Room, patch)
	if err != nil {
		return err
	}
	reportWrite(s, written)
	return nil
}

// player loads the room and finds ref by id, then by case-insensitive name.
func (s *session) player(roomID, ref string) (room.Data, room.Player, error) {
	view, err := s.rooms.Room(s.ctx, roomID)
	if err != nil {
		return room.Data{}, room.Player{}, err
	}
	p, err := resolvePlayer(view.Room, ref)
	return view.Room, p, err
}

func (s *session) edit(roomID, ref string, build func(room.Data) (rooms.PlayerPatch, error)) error {
	data, p, err := s.player(roomID, ref)
	if err != nil {
		return err
	}
	patch, err := build(data)
	if err != nil {
		return err
	}
	written, err := s.rooms.UpdatePlayer(s.ctx, roomID, p.ID, patch)
	if err != nil {
		return err
	}
	reportWrite(s, written)
	return nil
}

func reportWrite(s *session, written bool) {
	if written {
		fmt.Fprintln(s.out, successStyle.Render("saved"))
		return
	}
	fmt.Fprintln(s.out, infoStyle.Render("no change"))
}

func resolvePlayer(data room.Data, ref string) (room.Player, error) {
	if p, ok := data.Player(ref); ok {
		return p, nil
	}
	var found []room.Player
	for _, p := range data.Players {
		if strings.EqualFold(p.Name, strings.TrimSpace(ref)) {
			found = append(found, p)
		}
	}
	switch len(found) {
	case 0:
		return room.Player{}, rooms.ErrPlayerNotFound
	case 1:
		return found[0], nil
	default:
		return room.Player{}, errAmbiguousPlayer
	}
}

func parseAmount(input string, override room.DisplayMode, cfg room.Config) (float64, error) {
	return ledger.ParseAmount(input, effectiveMode(override, cfg), cfg.ChipValue)
}

func effectiveMode(override room.DisplayMode, cfg room.Config) room.DisplayMode {
	if override.Valid() {
		return override
	}
	return cfg.DisplayMode
}

func describeError(err error) string {
	switch {
	case errors.Is(err, rooms.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, rooms.ErrPlayerNotFound):
		return "player not found"
	case errors.Is(err, commit.ErrEmptyName):
		return "name must not be empty"
	case errors.Is(err, commit.ErrInvalidNumber):
		return "not a number"
	case errors.Is(err, commit.ErrInvalidChipValue):
		return "chip value must be positive"
	case errors.Is(err, commit.ErrInvalidConfig):
		return "chips per hand and chip value must be positive"
	default:
		return err.Error()
	}
}
