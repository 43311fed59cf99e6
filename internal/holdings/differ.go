package holdings

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/minjaelee/kis-sentinel/internal/domain"
)

// Totals aggregates the valuation of a whole snapshot
type Totals struct {
	MarketValue float64 `json:"market_value"`
	CostBasis   float64 `json:"cost_basis"`
	PnL         float64 `json:"pnl"`
	PnLPct      float64 `json:"pnl_pct"`
}

// DiffResult is the outcome of comparing two snapshots
type DiffResult struct {
	Current    domain.Snapshot      `json:"current"` // normalized, sorted by market value
	Events     []domain.ChangeEvent `json:"events"`
	Totals     Totals               `json:"totals"`
	NoHoldings bool                 `json:"no_holdings"`
}

// Differ turns two point-in-time snapshots into a change set with
// profit/loss attribution
type Differ struct {
	log zerolog.Logger
}

// NewDiffer creates a new holdings differ
func NewDiffer(log zerolog.Logger) *Differ {
	return &Differ{log: log.With().Str("component", "differ").Logger()}
}

// Diff computes valuations for the current snapshot and the change events
// between previous and current. Replacing the stored baseline is the
// caller's responsibility and happens after this returns.
func (d *Differ) Diff(previous, current domain.Snapshot) DiffResult {
	lines := make([]domain.HoldingLine, 0, len(current.Lines))
	for _, line := range current.Lines {
		if line.Quantity <= 0 {
			continue
		}
		lines = append(lines, normalize(line))
	}

	// Display contract: largest positions first, input order on ties
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].MarketValue > lines[j].MarketValue
	})

	normalized := domain.Snapshot{Lines: lines}
	result := DiffResult{
		Current:    normalized,
		NoHoldings: len(lines) == 0,
	}

	for _, line := range lines {
		result.Totals.MarketValue += line.MarketValue
		result.Totals.CostBasis += float64(line.Quantity) * line.AvgPrice
		result.Totals.PnL += line.UnrealizedPnL
	}
	if result.Totals.CostBasis != 0 {
		result.Totals.PnLPct = result.Totals.PnL / result.Totals.CostBasis * 100
	}

	result.Events = d.changeEvents(previous, normalized)
	return result
}

// changeEvents emits one event per instrument whose quantity changed,
// including positions that appeared or disappeared entirely
func (d *Differ) changeEvents(previous, current domain.Snapshot) []domain.ChangeEvent {
	prevQty := previous.Quantities()
	curQty := current.Quantities()

	codes := make([]string, 0, len(prevQty)+len(curQty))
	seen := make(map[string]bool, len(prevQty)+len(curQty))
	for code := range curQty {
		codes = append(codes, code)
		seen[code] = true
	}
	for code := range prevQty {
		if !seen[code] {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	var events []domain.ChangeEvent
	for _, code := range codes {
		oldQty := prevQty[code]
		newQty := curQty[code]
		if oldQty == newQty {
			continue
		}

		line, ok := current.Line(code)
		if !ok {
			// Position fully closed: price context comes from the baseline
			line, _ = previous.Line(code)
			line = normalize(line)
		}

		event := domain.ChangeEvent{
			Code:           code,
			Name:           line.Name,
			OldQty:         oldQty,
			NewQty:         newQty,
			PnLAtDetection: line.UnrealizedPnL,
		}
		if newQty > oldQty {
			event.Direction = domain.DirectionIncrease
		} else {
			event.Direction = domain.DirectionDecrease
			// Documented approximation, not lot-accounted realized gain
			event.EstimatedRealizedPnL = float64(oldQty-newQty) * (line.CurrentPrice - line.AvgPrice)
		}
		events = append(events, event)
	}

	return events
}

// normalize fills derived valuation fields, preferring upstream-reported
// values when they are present and non-zero
func normalize(line domain.HoldingLine) domain.HoldingLine {
	cost := float64(line.Quantity) * line.AvgPrice
	if line.MarketValue == 0 {
		line.MarketValue = float64(line.Quantity) * line.CurrentPrice
	}
	if line.UnrealizedPnL == 0 {
		line.UnrealizedPnL = line.MarketValue - cost
	}
	if line.UnrealizedPnLPct == 0 {
		if cost != 0 {
			line.UnrealizedPnLPct = line.UnrealizedPnL / cost * 100
		} else {
			line.UnrealizedPnLPct = 0
		}
	}
	return line
}
