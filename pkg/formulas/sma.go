package formulas

import (
	"github.com/markcheno/go-talib"
)

// SMA returns the most recent simple moving average over the given
// period, or 0 when there is not enough data
func SMA(data []float64, period int) float64 {
	if period <= 0 || len(data) < period {
		return 0
	}

	sma := talib.Sma(data, period)
	if len(sma) == 0 {
		return 0
	}

	last := sma[len(sma)-1]
	if last != last { // NaN
		return 0
	}
	return last
}
