package trend

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/minjaelee/kis-sentinel/internal/domain"
	"github.com/minjaelee/kis-sentinel/internal/flows"
	"github.com/minjaelee/kis-sentinel/pkg/formulas"
)

// DefaultTopN bounds a ranking when the caller passes no limit
const DefaultTopN = 15

// HistorySource is the read side of the flow ledger the scorer consumes.
// The scorer never writes to it.
type HistorySource interface {
	Symbols() ([]flows.Instrument, error)
	LastN(symbol string, n int) ([]domain.FlowPoint, error)
}

// Scorer ranks instruments by sustained net-buying pressure
type Scorer struct {
	history HistorySource
	log     zerolog.Logger
}

// NewScorer creates a new trend scorer
func NewScorer(history HistorySource, log zerolog.Logger) *Scorer {
	return &Scorer{
		history: history,
		log:     log.With().Str("component", "trend_scorer").Logger(),
	}
}

// Rank scores every instrument in the flow universe over the last `days`
// entries and returns the top candidates, highest score first. Equal
// scores keep the universe enumeration order, which is lexicographic by
// symbol, so rankings are reproducible across runs.
func (s *Scorer) Rank(days, topN int) ([]domain.TrendCandidate, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}

	instruments, err := s.history.Symbols()
	if err != nil {
		return nil, err
	}

	var candidates []domain.TrendCandidate
	for _, ins := range instruments {
		points, err := s.history.LastN(ins.Symbol, days)
		if err != nil {
			return nil, err
		}
		if len(points) < 3 {
			// Too short to call a trend
			continue
		}

		values := make([]int64, len(points))
		for i, p := range points {
			values[i] = p.Qty
		}

		if !SustainedGrowth(values) {
			continue
		}

		floats := formulas.AsFloats(values)
		candidates = append(candidates, domain.TrendCandidate{
			Code:   ins.Symbol,
			Name:   ins.Name,
			Series: values,
			Score:  Score(values),
			Mean:   formulas.Mean(floats),
			StdDev: formulas.StdDev(floats),
			Slope:  formulas.Slope(floats),
			SMA5:   formulas.SMA(floats, 5),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates, nil
}

// SustainedGrowth reports whether a flow series shows sustained buying:
// at least 4 of the last 5 values positive (scaled to len-1 for shorter
// windows) AND the last three values strictly increasing. Both conditions
// are required.
func SustainedGrowth(v []int64) bool {
	n := len(v)
	if n < 3 {
		return false
	}

	window := v
	if n > 5 {
		window = v[n-5:]
	}
	positive := 0
	for _, x := range window {
		if x > 0 {
			positive++
		}
	}
	if positive < len(window)-1 {
		return false
	}

	return v[n-3] < v[n-2] && v[n-2] < v[n-1]
}

// Score sums the positive flow across the series with double extra
// weight on the most recent day
func Score(v []int64) float64 {
	var score float64
	for _, x := range v {
		if x > 0 {
			score += float64(x)
		}
	}
	if last := v[len(v)-1]; last > 0 {
		score += 2 * float64(last)
	}
	return score
}
