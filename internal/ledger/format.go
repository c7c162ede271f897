package ledger

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"chiptally/internal/room"
)

const CurrencySymbol = "¥"

var (
	ErrInvalidNumber    = errors.New("invalid_number")
	ErrInvalidChipValue = errors.New("invalid_chip_value")
)

// maxCashDecimals bounds the precision search in FormatCash.
const maxCashDecimals = 8

// FormatNumber renders v with at most two decimals and no trailing zeros.
func FormatNumber(v float64) string {
	return formatFixed(v, 2)
}

func formatFixed(v float64, decimals int) string {
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s
}

// FormatCash renders a chip quantity as currency. It uses two decimals
// unless more are needed for ParseCash to recover the chip quantity.
func FormatCash(chips, chipValue float64) string {
	cash := chips * chipValue
	for d := 2; d <= maxCashDecimals; d++ {
		s := formatFixed(cash, d)
		back, err := strconv.ParseFloat(s, 64)
		if err == nil && chipValue > 0 && math.Abs(back/chipValue-chips) < Tolerance {
			return currency(s)
		}
	}
	return currency(strconv.FormatFloat(cash, 'f', -1, 64))
}

func currency(s string) string {
	if strings.HasPrefix(s, "-") {
		return "-" + CurrencySymbol + s[1:]
	}
	return CurrencySymbol + s
}

// FormatAmount renders a chip quantity in the given display mode.
func FormatAmount(chips float64, mode room.DisplayMode, chipValue float64) string {
	if mode == room.DisplayCash {
		return FormatCash(chips, chipValue)
	}
	return FormatNumber(chips)
}

// FormatProfit renders a signed profit. Zero is "0" in both modes.
func FormatProfit(profit float64, mode room.DisplayMode, chipValue float64) string {
	if IsZero(profit) {
		return "0"
	}
	if mode == room.DisplayCash {
		return FormatCash(profit, chipValue)
	}
	s := FormatNumber(profit)
	if profit > 0 {
		return "+" + s
	}
	return s
}

// BalanceStatus describes the table delta: balanced, over or short.
func BalanceStatus(t Totals, mode room.DisplayMode, chipValue float64) string {
	if t.IsBalanced {
		return "balanced"
	}
	amount := FormatAmount(math.Abs(t.Delta), mode, chipValue)
	if t.Delta > 0 {
		return "over " + amount
	}
	return "short " + amount
}

// Hint is the one-line summary of a room's hand price.
func Hint(cfg room.Config) string {
	return fmt.Sprintf("%s chips per hand · %s", FormatNumber(cfg.ChipsPerHand), FormatCash(cfg.ChipsPerHand, cfg.ChipValue))
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, CurrencySymbol)
	if strings.HasPrefix(s, "-"+CurrencySymbol) {
		s = "-" + strings.TrimPrefix(s, "-"+CurrencySymbol)
	}
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidNumber
	}
	return v, nil
}

// ParseCash converts a currency amount back to chips.
func ParseCash(s string, chipValue float64) (float64, error) {
	if !(chipValue > 0) || math.IsInf(chipValue, 0) {
		return 0, ErrInvalidChipValue
	}
	v, err := parseNumber(s)
	if err != nil {
		return 0, err
	}
	return v / chipValue, nil
}

// ParseAmount parses user input in the given display mode into chips.
func ParseAmount(s string, mode room.DisplayMode, chipValue float64) (float64, error) {
	if mode == room.DisplayCash {
		return ParseCash(s, chipValue)
	}
	return parseNumber(s)
}
