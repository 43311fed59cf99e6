package trend

import (
	"strings"
	"testing"

	"github.com/minjaelee/kis-sentinel/internal/domain"
)

func TestRenderRanking_Empty(t *testing.T) {
	if got := RenderRanking(nil, 20); got != EmptyRankingReport {
		t.Errorf("Expected the empty-ranking text, got %q", got)
	}
}

func TestRenderRanking_PipeSeparatedFields(t *testing.T) {
	text := RenderRanking([]domain.TrendCandidate{
		{
			Code:   "005930",
			Name:   "Samsung Electronics",
			Series: []int64{10, 20, 30},
			Score:  120,
			Mean:   20,
			StdDev: 10,
			Slope:  10,
			SMA5:   0,
		},
	}, 20)

	for _, want := range []string{
		"1. Samsung Electronics (005930) | score: 120",
		"last days: +10 | +20 | +30",
		"avg 20 ± 10",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Ranking missing %q:\n%s", want, text)
		}
	}
}

func TestRenderRanking_FallsBackToCodeWithoutName(t *testing.T) {
	text := RenderRanking([]domain.TrendCandidate{
		{Code: "000660", Series: []int64{1, 2, 3}, Score: 12},
	}, 20)

	if !strings.Contains(text, "000660 (000660)") {
		t.Errorf("Expected the code to stand in for a missing name:\n%s", text)
	}
}
