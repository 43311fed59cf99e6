package holdings

import (
	"fmt"
	"strings"

	"github.com/minjaelee/kis-sentinel/internal/domain"
)

// NoHoldingsReport is the distinguished text for an empty account
const NoHoldingsReport = "📭 No open positions."

// NoFlowData is the per-line fallback before the exchange publishes the
// day's investor flow
const NoFlowData = "investor flow not yet available"

// FlowSummary is one holding's net investor flow for the report.
// Absence from the flows map means the figure is not available.
type FlowSummary struct {
	Foreign       int64
	Institutional int64
}

// RenderReport formats a full holdings P&L report for the webhook.
// flows carries today's per-instrument investor flow; pass nil to render
// the fallback on every line.
func RenderReport(result DiffResult, flows map[string]FlowSummary) string {
	if result.NoHoldings {
		return NoHoldingsReport
	}

	var b strings.Builder
	b.WriteString("📊 Holdings P&L report")

	for _, line := range result.Current.Lines {
		fmt.Fprintf(&b, "\n\n📌 %s (%s)", line.Name, line.Code)
		fmt.Fprintf(&b, "\n┗ qty: %d | avg: %s | last: %s",
			line.Quantity, formatWon(line.AvgPrice), formatWon(line.CurrentPrice))
		fmt.Fprintf(&b, "\n┗ value: %s | p&l: %s (%.2f%%)",
			formatWon(line.MarketValue), formatWon(line.UnrealizedPnL), line.UnrealizedPnLPct)
		if fs, ok := flows[line.Code]; ok {
			fmt.Fprintf(&b, "\n┗ foreign net buy: %s | institutional net buy: %s",
				formatShares(fs.Foreign), formatShares(fs.Institutional))
		} else {
			fmt.Fprintf(&b, "\n┗ %s", NoFlowData)
		}
	}

	fmt.Fprintf(&b, "\n\n📈 total value: %s", formatWon(result.Totals.MarketValue))
	fmt.Fprintf(&b, "\n💰 total p&l: %s (%.2f%%)", formatWon(result.Totals.PnL), result.Totals.PnLPct)

	return b.String()
}

// RenderChangeAlert formats the position-change alert for one diff cycle
func RenderChangeAlert(events []domain.ChangeEvent) string {
	var b strings.Builder
	b.WriteString("🔔 Position changes detected")

	for _, ev := range events {
		arrow := "⬆️ increase"
		if ev.Direction == domain.DirectionDecrease {
			arrow = "⬇️ decrease"
		}
		fmt.Fprintf(&b, "\n\n%s %s (%s)", arrow, ev.Name, ev.Code)
		fmt.Fprintf(&b, "\n┗ qty: %d → %d", ev.OldQty, ev.NewQty)
		if ev.Direction == domain.DirectionDecrease {
			fmt.Fprintf(&b, "\n┗ est. realized p&l: %s", formatWon(ev.EstimatedRealizedPnL))
		} else {
			fmt.Fprintf(&b, "\n┗ unrealized p&l: %s", formatWon(ev.PnLAtDetection))
		}
	}

	return b.String()
}

// RenderFillAlert formats a single executed-order alert
func RenderFillAlert(fill domain.Fill) string {
	emoji := "🟢"
	if fill.Side == "SELL" {
		emoji = "🔴"
	}
	return fmt.Sprintf("%s [%s filled] %s (%s)\n┗ qty: %d | price: %s",
		emoji, fill.Side, fill.Name, fill.Code, fill.Quantity, formatWon(fill.Price))
}

// formatShares renders a signed share count with thousands separators
func formatShares(v int64) string {
	if v < 0 {
		return "-" + groupDigits(fmt.Sprintf("%d", -v)) + "주"
	}
	return "+" + groupDigits(fmt.Sprintf("%d", v)) + "주"
}

// formatWon renders a KRW amount with thousands separators and no decimals
func formatWon(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := groupDigits(fmt.Sprintf("%.0f", v))
	if neg {
		return "-" + s + "원"
	}
	return s + "원"
}

func groupDigits(s string) string {
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
