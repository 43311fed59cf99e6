package holdings

import (
	"math"
	"testing"

	"github.com/minjaelee/kis-sentinel/internal/domain"
	"github.com/minjaelee/kis-sentinel/pkg/logger"
)

func quietLog() *Differ {
	return NewDiffer(logger.New(logger.Config{Level: "error", Pretty: false}))
}

func line(code string, qty int64, avg, price float64) domain.HoldingLine {
	return domain.HoldingLine{
		Code:         code,
		Name:         "Test " + code,
		Quantity:     qty,
		AvgPrice:     avg,
		CurrentPrice: price,
	}
}

func TestDiff_NoHoldings(t *testing.T) {
	d := quietLog()

	result := d.Diff(domain.Snapshot{}, domain.Snapshot{})
	if !result.NoHoldings {
		t.Error("Expected NoHoldings for two empty snapshots")
	}
	if len(result.Events) != 0 {
		t.Errorf("Expected no events, got %d", len(result.Events))
	}
	if result.Totals.MarketValue != 0 || result.Totals.PnLPct != 0 {
		t.Errorf("Expected zero totals, got %+v", result.Totals)
	}
}

func TestDiff_ZeroQuantityExcluded(t *testing.T) {
	d := quietLog()

	current := domain.Snapshot{Lines: []domain.HoldingLine{
		line("005930", 10, 70000, 75000),
		line("000660", 0, 120000, 130000),
	}}
	result := d.Diff(domain.Snapshot{}, current)

	if len(result.Current.Lines) != 1 {
		t.Fatalf("Expected 1 line after filtering, got %d", len(result.Current.Lines))
	}
	if result.Current.Lines[0].Code != "005930" {
		t.Errorf("Expected 005930 to survive, got %s", result.Current.Lines[0].Code)
	}
}

func TestDiff_NormalizeDerivesValuation(t *testing.T) {
	d := quietLog()

	current := domain.Snapshot{Lines: []domain.HoldingLine{
		line("005930", 10, 70000, 75000),
	}}
	result := d.Diff(domain.Snapshot{}, current)

	got := result.Current.Lines[0]
	if got.MarketValue != 750000 {
		t.Errorf("Expected market value 750000, got %.0f", got.MarketValue)
	}
	if got.UnrealizedPnL != 50000 {
		t.Errorf("Expected PnL 50000, got %.0f", got.UnrealizedPnL)
	}
	if math.Abs(got.UnrealizedPnLPct-50000.0/700000.0*100) > 1e-9 {
		t.Errorf("Expected PnL pct ~7.14, got %.4f", got.UnrealizedPnLPct)
	}
}

func TestDiff_NormalizePrefersUpstreamValues(t *testing.T) {
	d := quietLog()

	l := line("005930", 10, 70000, 75000)
	l.MarketValue = 751000
	l.UnrealizedPnL = 51000
	l.UnrealizedPnLPct = 7.28

	result := d.Diff(domain.Snapshot{}, domain.Snapshot{Lines: []domain.HoldingLine{l}})

	got := result.Current.Lines[0]
	if got.MarketValue != 751000 || got.UnrealizedPnL != 51000 || got.UnrealizedPnLPct != 7.28 {
		t.Errorf("Upstream valuation fields should win, got %+v", got)
	}
}

func TestDiff_SortedByMarketValueDesc(t *testing.T) {
	d := quietLog()

	current := domain.Snapshot{Lines: []domain.HoldingLine{
		line("035420", 5, 180000, 190000),  // 950k
		line("005930", 100, 70000, 75000),  // 7.5M
		line("000660", 10, 120000, 130000), // 1.3M
	}}
	result := d.Diff(domain.Snapshot{}, current)

	want := []string{"005930", "000660", "035420"}
	for i, code := range want {
		if result.Current.Lines[i].Code != code {
			t.Errorf("Position %d: expected %s, got %s", i, code, result.Current.Lines[i].Code)
		}
	}
}

func TestDiff_IncreaseAndDecreaseEvents(t *testing.T) {
	d := quietLog()

	previous := domain.Snapshot{Lines: []domain.HoldingLine{
		line("005930", 10, 70000, 75000),
		line("000660", 10, 120000, 130000),
	}}
	current := domain.Snapshot{Lines: []domain.HoldingLine{
		line("005930", 15, 70000, 75000),
		line("000660", 4, 120000, 130000),
	}}

	result := d.Diff(previous, current)
	if len(result.Events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(result.Events))
	}

	// Events come out sorted by code
	dec := result.Events[0]
	if dec.Code != "000660" || dec.Direction != domain.DirectionDecrease {
		t.Fatalf("Expected 000660 decrease first, got %+v", dec)
	}
	if dec.OldQty != 10 || dec.NewQty != 4 {
		t.Errorf("Expected 10 -> 4, got %d -> %d", dec.OldQty, dec.NewQty)
	}
	// 6 shares sold at 10000 over cost
	if dec.EstimatedRealizedPnL != 60000 {
		t.Errorf("Expected estimated realized 60000, got %.0f", dec.EstimatedRealizedPnL)
	}

	inc := result.Events[1]
	if inc.Code != "005930" || inc.Direction != domain.DirectionIncrease {
		t.Fatalf("Expected 005930 increase, got %+v", inc)
	}
	if inc.EstimatedRealizedPnL != 0 {
		t.Errorf("Increase must not carry realized PnL, got %.0f", inc.EstimatedRealizedPnL)
	}
}

func TestDiff_FullyClosedPositionUsesBaselinePrices(t *testing.T) {
	d := quietLog()

	previous := domain.Snapshot{Lines: []domain.HoldingLine{
		line("005930", 100, 70000, 75000),
	}}
	// Upstream drops zero-quantity rows, so the position simply vanishes
	result := d.Diff(previous, domain.Snapshot{})

	if !result.NoHoldings {
		t.Error("Expected NoHoldings after closing the only position")
	}
	if len(result.Events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(result.Events))
	}

	ev := result.Events[0]
	if ev.Direction != domain.DirectionDecrease || ev.NewQty != 0 {
		t.Fatalf("Expected full-close decrease, got %+v", ev)
	}
	if ev.EstimatedRealizedPnL != 100*(75000-70000) {
		t.Errorf("Expected estimated realized 500000, got %.0f", ev.EstimatedRealizedPnL)
	}
}

func TestDiff_ReversalRoundTrip(t *testing.T) {
	d := quietLog()

	a := domain.Snapshot{Lines: []domain.HoldingLine{line("005930", 10, 70000, 75000)}}
	b := domain.Snapshot{Lines: []domain.HoldingLine{line("005930", 25, 70000, 75000)}}

	forward := d.Diff(a, b)
	backward := d.Diff(b, a)

	if len(forward.Events) != 1 || len(backward.Events) != 1 {
		t.Fatalf("Expected one event each way, got %d and %d", len(forward.Events), len(backward.Events))
	}
	f, r := forward.Events[0], backward.Events[0]
	if f.Direction != domain.DirectionIncrease || r.Direction != domain.DirectionDecrease {
		t.Errorf("Expected increase then decrease, got %s then %s", f.Direction, r.Direction)
	}
	if f.OldQty != r.NewQty || f.NewQty != r.OldQty {
		t.Errorf("Reversed diff should mirror quantities: %+v vs %+v", f, r)
	}
}

func TestDiff_UnchangedQuantityEmitsNoEvent(t *testing.T) {
	d := quietLog()

	prev := domain.Snapshot{Lines: []domain.HoldingLine{line("005930", 10, 70000, 75000)}}
	cur := domain.Snapshot{Lines: []domain.HoldingLine{line("005930", 10, 70000, 76000)}}

	result := d.Diff(prev, cur)
	if len(result.Events) != 0 {
		t.Errorf("Price moves without quantity changes must not alert, got %d events", len(result.Events))
	}
}
