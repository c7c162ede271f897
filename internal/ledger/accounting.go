// Package ledger derives buy-ins, profit and room totals from raw player
// fields and converts chip quantities for display.
package ledger

import (
	"math"

	"chiptally/internal/room"
)

// Tolerance absorbs rounding from chip/cash conversions.
const Tolerance = 1e-4

type Totals struct {
	TotalBuyIn   float64 `json:"totalBuyIn"`
	TotalCurrent float64 `json:"totalCurrent"`
	Delta        float64 `json:"delta"`
	IsBalanced   bool    `json:"isBalanced"`
}

// DerivedBuyIn is the buy-in implied by a hand count.
func DerivedBuyIn(hands int, chipsPerHand float64) float64 {
	return float64(hands) * chipsPerHand
}

// EffectiveBuyIn returns the stored buy-in for override players and the
// hands-derived value for everyone else.
func EffectiveBuyIn(p room.Player, cfg room.Config) float64 {
	if p.BuyInOverride {
		return p.BuyInChips
	}
	return DerivedBuyIn(p.Hands, cfg.ChipsPerHand)
}

func Profit(p room.Player, cfg room.Config) float64 {
	return p.CurrentChips - EffectiveBuyIn(p, cfg)
}

func ComputeTotals(players []room.Player, cfg room.Config) Totals {
	var t Totals
	for _, p := range players {
		t.TotalBuyIn += EffectiveBuyIn(p, cfg)
		t.TotalCurrent += p.CurrentChips
	}
	t.Delta = t.TotalCurrent - t.TotalBuyIn
	t.IsBalanced = IsZero(t.Delta)
	return t
}

// IsZero reports whether v is zero within Tolerance.
func IsZero(v float64) bool {
	return math.Abs(v) < Tolerance
}

// Round2 rounds to two decimal places, the precision chip edits are stored at.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
