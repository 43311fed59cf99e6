package domain

// Direction indicates which way a position quantity moved between cycles
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// HoldingLine represents one position from the brokerage balance report
type HoldingLine struct {
	Code             string  `json:"code"` // KIS product number (pdno)
	Name             string  `json:"name"`
	Quantity         int64   `json:"quantity"`
	AvgPrice         float64 `json:"avg_price"`
	CurrentPrice     float64 `json:"current_price"`
	MarketValue      float64 `json:"market_value"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	UnrealizedPnLPct float64 `json:"unrealized_pnl_pct"`
}

// Snapshot is a point-in-time view of all open positions.
// Lines with zero quantity are excluded before a Snapshot is built.
type Snapshot struct {
	Lines []HoldingLine `json:"lines"`
}

// Empty reports whether the account holds no open positions
func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

// Quantities returns the per-code quantity map used for diffing
func (s Snapshot) Quantities() map[string]int64 {
	q := make(map[string]int64, len(s.Lines))
	for _, line := range s.Lines {
		q[line.Code] = line.Quantity
	}
	return q
}

// Line returns the holding line for a code, if present
func (s Snapshot) Line(code string) (HoldingLine, bool) {
	for _, line := range s.Lines {
		if line.Code == code {
			return line, true
		}
	}
	return HoldingLine{}, false
}

// ChangeEvent describes a quantity change detected between two snapshots.
// EstimatedRealizedPnL is only populated on decreases and is an approximation
// (|Δqty| * (lastPrice - avgCost)), not a lot-accounted realized gain.
type ChangeEvent struct {
	Code                 string    `json:"code"`
	Name                 string    `json:"name"`
	OldQty               int64     `json:"old_qty"`
	NewQty               int64     `json:"new_qty"`
	Direction            Direction `json:"direction"`
	PnLAtDetection       float64   `json:"pnl_at_detection"`
	EstimatedRealizedPnL float64   `json:"estimated_realized_pnl,omitempty"`
}

// FlowPoint is one day of net investor flow for an instrument
type FlowPoint struct {
	Day string `json:"day"` // YYYY-MM-DD
	Qty int64  `json:"qty"` // net bought (positive) or sold (negative) shares
}

// TrendCandidate is a scored instrument from a trend scoring pass.
// Mean, StdDev, Slope and SMA5 are attached for report rendering only;
// ranking is by Score alone.
type TrendCandidate struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Series []int64 `json:"series"`
	Score  float64 `json:"score"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Slope  float64 `json:"slope"`
	SMA5   float64 `json:"sma5"`
}

// Fill represents one executed order from the daily fills report
type Fill struct {
	OrderID  string  `json:"order_id"`
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Side     string  `json:"side"` // BUY or SELL
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
}
