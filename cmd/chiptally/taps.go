package main

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	"chiptally/internal/commit"
	"chiptally/internal/room"
)

var errBadTap = errors.New(`expected "+N <player>" or "-N <player>"`)

// handDrafts keeps the locally shown hand count of every player in the
// watched room. Server snapshots win unless a tap is in flight.
type handDrafts struct {
	mu     sync.Mutex
	drafts map[string]*commit.Draft[int]
}

func newHandDrafts() *handDrafts {
	return &handDrafts{drafts: map[string]*commit.Draft[int]{}}
}

func (h *handDrafts) draft(p room.Player) *commit.Draft[int] {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.drafts[p.ID]
	if !ok {
		d = commit.NewDraft(p.Hands)
		h.drafts[p.ID] = d
	}
	return d
}

// sync feeds a snapshot's players into their drafts and forgets players
// that are gone.
func (h *handDrafts) sync(players []room.Player) {
	seen := make(map[string]struct{}, len(players))
	for _, p := range players {
		seen[p.ID] = struct{}{}
		h.draft(p).Sync(p.Hands)
	}
	h.mu.Lock()
	for id := range h.drafts {
		if _, ok := seen[id]; !ok {
			delete(h.drafts, id)
		}
	}
	h.mu.Unlock()
}

// overlay returns a copy of data with the drafted hand counts.
func (h *handDrafts) overlay(data room.Data) room.Data {
	players := make([]room.Player, len(data.Players))
	for i, p := range data.Players {
		p.Hands = h.draft(p).Value()
		players[i] = p
	}
	data.Players = players
	return data
}

// parseTap reads "+2 Ana", "- Ana" or "-1 p_1234". A bare sign means one hand.
func parseTap(line string) (int, string, error) {
	line = strings.TrimSpace(line)
	op, ref, ok := strings.Cut(line, " ")
	ref = strings.TrimSpace(ref)
	if !ok || ref == "" || (op[0] != '+' && op[0] != '-') {
		return 0, "", errBadTap
	}
	if len(op) == 1 {
		op += "1"
	}
	delta, err := strconv.Atoi(op)
	if err != nil || delta == 0 {
		return 0, "", errBadTap
	}
	return delta, ref, nil
}
