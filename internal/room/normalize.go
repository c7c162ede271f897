package room

import (
	"math"
	"sort"
	"time"
)

// Normalize turns a snapshot into a complete Data value: default config when
// the stored one is missing or unusable, players ordered by Order ascending,
// history ordered newest first. Ties are broken by id so the output is stable.
func Normalize(roomID string, snap *Snapshot, now time.Time) Data {
	if snap == nil {
		snap = &Snapshot{}
	}
	cfg, defaulted := normalizeConfig(snap.Config, now)
	data := Data{
		ID:              roomID,
		Config:          cfg,
		Players:         normalizePlayers(snap.Players),
		History:         normalizeHistory(snap.History),
		ConfigDefaulted: defaulted,
	}
	if snap.UpdatedAt != nil {
		data.UpdatedAt = *snap.UpdatedAt
	} else {
		data.UpdatedAt = now.UnixMilli()
	}
	if snap.ExpiresAt != nil {
		v := *snap.ExpiresAt
		data.ExpiresAt = &v
	}
	return data
}

// normalizeConfig reports whether any stored field had to be substituted.
func normalizeConfig(raw *RawConfig, now time.Time) (Config, bool) {
	cfg := DefaultConfig(now)
	if raw == nil {
		return cfg, true
	}
	defaulted := false
	if raw.CreatedAt != nil && isFinite(*raw.CreatedAt) {
		cfg.CreatedAt = int64(*raw.CreatedAt)
	} else {
		defaulted = true
	}
	if raw.ChipsPerHand == nil || raw.ChipValue == nil || !positive(*raw.ChipsPerHand) || !positive(*raw.ChipValue) {
		return cfg, true
	}
	cfg.ChipsPerHand = *raw.ChipsPerHand
	cfg.ChipValue = *raw.ChipValue
	if mode := DisplayMode(raw.DisplayMode); mode.Valid() {
		cfg.DisplayMode = mode
	} else {
		defaulted = true
	}
	return cfg, defaulted
}

// ValidConfig reports whether cfg satisfies the room config invariants.
func ValidConfig(cfg Config) bool {
	return positive(cfg.ChipsPerHand) && positive(cfg.ChipValue) && cfg.DisplayMode.Valid()
}

func normalizePlayers(raw map[string]RawPlayer) []Player {
	out := make([]Player, 0, len(raw))
	for key, rp := range raw {
		id := rp.ID
		if id == "" {
			id = key
		}
		hands := 0
		if isFinite(rp.Hands) && rp.Hands > 0 {
			hands = int(math.Round(rp.Hands))
		}
		p := Player{
			ID:            id,
			Name:          rp.Name,
			Hands:         hands,
			CurrentChips:  finiteOrZero(rp.CurrentChips),
			BuyInChips:    finiteOrZero(rp.BuyInChips),
			BuyInOverride: rp.BuyInOverride != nil && *rp.BuyInOverride,
		}
		if rp.Order != nil && isFinite(*rp.Order) {
			p.Order = int64(*rp.Order)
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func normalizeHistory(raw map[string]HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(raw))
	for _, h := range raw {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func positive(v float64) bool {
	return isFinite(v) && v > 0
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOrZero(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}
