package trend

import (
	"fmt"
	"strings"

	"github.com/minjaelee/kis-sentinel/internal/domain"
)

// EmptyRankingReport is sent when no instrument passes the predicate
const EmptyRankingReport = "📉 No sustained net-buying trends this week."

// UnavailableReport is sent when the flow ledger cannot be read
const UnavailableReport = "⚠️ Trend ranking unavailable: flow history store unreachable."

// RenderRanking formats a trend ranking for the webhook
func RenderRanking(candidates []domain.TrendCandidate, days int) string {
	if len(candidates) == 0 {
		return EmptyRankingReport
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📈 Net-buying trend ranking (last %d sessions)", days)

	for i, c := range candidates {
		name := c.Name
		if name == "" {
			name = c.Code
		}
		fmt.Fprintf(&b, "\n\n%d. %s (%s) | score: %.0f", i+1, name, c.Code, c.Score)
		fmt.Fprintf(&b, "\n┗ last days: %s", formatSeries(c.Series))
		fmt.Fprintf(&b, "\n┗ avg %.0f ± %.0f | slope %+.0f/day | 5d SMA %.0f",
			c.Mean, c.StdDev, c.Slope, c.SMA5)
	}

	return b.String()
}

func formatSeries(values []int64) string {
	show := values
	if len(show) > 5 {
		show = show[len(show)-5:]
	}
	parts := make([]string, len(show))
	for i, v := range show {
		parts[i] = fmt.Sprintf("%+d", v)
	}
	return strings.Join(parts, " | ")
}
