package main

import (
	"strconv"
	"strings"
	"time"

	"chiptally/internal/ledger"
	"chiptally/internal/room"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const clearScreen = "\x1b[H\x1b[2J"

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFEAA7")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

const profitColumn = 4

// renderRoom draws the player table, the totals line and the history.
// Amounts use override when it is a valid mode, else the room's own mode.
func renderRoom(data room.Data, history []room.HistoryEntry, override room.DisplayMode) string {
	cfg := data.Config
	mode := effectiveMode(override, cfg)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Room " + data.ID))
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(ledger.Hint(cfg)))
	b.WriteString("\n\n")

	if len(data.Players) == 0 {
		b.WriteString(infoStyle.Render("no players yet"))
		b.WriteString("\n")
	} else {
		b.WriteString(playerTable(data.Players, cfg, mode))
		b.WriteString("\n")
	}

	totals := ledger.ComputeTotals(data.Players, cfg)
	status := ledger.BalanceStatus(totals, mode, cfg.ChipValue)
	statusStyle := warningStyle
	if totals.IsBalanced {
		statusStyle = successStyle
	}
	b.WriteString("buy-in " + ledger.FormatAmount(totals.TotalBuyIn, mode, cfg.ChipValue))
	b.WriteString(" · current " + ledger.FormatAmount(totals.TotalCurrent, mode, cfg.ChipValue))
	b.WriteString(" · ")
	b.WriteString(statusStyle.Render(status))
	b.WriteString("\n")

	if len(history) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.UnsetPadding().Render("History"))
		b.WriteString("\n")
		for _, e := range history {
			ts := time.UnixMilli(e.Timestamp).Format("15:04")
			b.WriteString(infoStyle.Render(ts) + " " + e.Message + "\n")
		}
	}
	return b.String()
}

func playerTable(players []room.Player, cfg room.Config, mode room.DisplayMode) string {
	rows := make([][]string, 0, len(players))
	profits := make([]float64, 0, len(players))
	for _, p := range players {
		buyIn := ledger.FormatAmount(ledger.EffectiveBuyIn(p, cfg), mode, cfg.ChipValue)
		if p.BuyInOverride {
			buyIn += "*"
		}
		profit := ledger.Profit(p, cfg)
		profits = append(profits, profit)
		rows = append(rows, []string{
			p.Name,
			strconv.Itoa(p.Hands),
			buyIn,
			ledger.FormatAmount(p.CurrentChips, mode, cfg.ChipValue),
			ledger.FormatProfit(profit, mode, cfg.ChipValue),
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Player", "Hands", "Buy-in", "Current", "Profit").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == profitColumn && row < len(profits):
				return profitStyle(profits[row])
			case col > 0:
				return cellStyle.Align(lipgloss.Right)
			default:
				return cellStyle
			}
		})
	return t.Render()
}

func profitStyle(profit float64) lipgloss.Style {
	s := cellStyle.Align(lipgloss.Right)
	switch {
	case ledger.IsZero(profit):
		return s
	case profit > 0:
		return s.Foreground(lipgloss.Color("#96CEB4"))
	default:
		return s.Foreground(lipgloss.Color("#FF6B6B"))
	}
}
