package roompush

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"chiptally/internal/ledger"
	"chiptally/internal/room"
)

const (
	colorHistory    = 0x5865F2
	colorBalanced   = 0x57F287
	colorUnbalanced = 0xFEE75C
	colorClosed     = 0xED4245

	defaultFooter = "chiptally"
	unnamedPlayer = "(unnamed)"
)

func panelKey(roomID string) string {
	return "room:" + roomID
}

// FormatHistory renders one history entry as a standalone message.
func FormatHistory(roomID string, entry room.HistoryEntry) FormattedMessage {
	return FormattedMessage{
		Title:       "Room " + roomID,
		Description: entry.Message,
		Color:       colorHistory,
		Timestamp:   millisTimestamp(entry.Timestamp),
		Footer:      defaultFooter,
	}
}

// FormatStandings renders the standings panel: one field per player in seat
// order and a closing field with the table totals.
func FormatStandings(data room.Data, totals ledger.Totals) FormattedMessage {
	cfg := data.Config
	mode := cfg.DisplayMode
	fields := make([]MessageField, 0, len(data.Players)+1)
	for _, p := range data.Players {
		fields = append(fields, MessageField{
			Name: playerName(p),
			Value: fmt.Sprintf("%s · buy-in %s · chips %s · %s",
				handsText(p.Hands),
				ledger.FormatAmount(ledger.EffectiveBuyIn(p, cfg), mode, cfg.ChipValue),
				ledger.FormatAmount(p.CurrentChips, mode, cfg.ChipValue),
				ledger.FormatProfit(ledger.Profit(p, cfg), mode, cfg.ChipValue),
			),
		})
	}
	fields = append(fields, MessageField{
		Name: "Table",
		Value: fmt.Sprintf("buy-in %s · chips %s",
			ledger.FormatAmount(totals.TotalBuyIn, mode, cfg.ChipValue),
			ledger.FormatAmount(totals.TotalCurrent, mode, cfg.ChipValue),
		),
	})

	color := colorUnbalanced
	if totals.IsBalanced {
		color = colorBalanced
	}
	description := ledger.BalanceStatus(totals, mode, cfg.ChipValue)
	if len(data.Players) == 0 {
		description = "no players yet"
	}
	return FormattedMessage{
		PanelKey:    panelKey(data.ID),
		Title:       "Standings · Room " + data.ID,
		Description: description,
		Color:       color,
		Timestamp:   millisTimestamp(data.UpdatedAt),
		Footer:      ledger.Hint(cfg),
		Fields:      fields,
	}
}

// FormatClosed is the last panel state of a room that was deleted or expired.
func FormatClosed(roomID string, now time.Time) FormattedMessage {
	return FormattedMessage{
		PanelKey:    panelKey(roomID),
		Title:       "Standings · Room " + roomID,
		Description: "room closed",
		Color:       colorClosed,
		Timestamp:   now.UTC().Format(time.RFC3339),
		Footer:      defaultFooter,
	}
}

func playerName(p room.Player) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return unnamedPlayer
}

func handsText(hands int) string {
	if hands == 1 {
		return "1 hand"
	}
	return strconv.Itoa(hands) + " hands"
}

func millisTimestamp(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
