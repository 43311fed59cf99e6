package formulas

import (
	"math"
	"testing"
)

func TestMean(t *testing.T) {
	if got := Mean([]float64{1, 2, 3, 4, 5}); got != 3 {
		t.Errorf("Mean = %v, want 3", got)
	}
	if got := Mean(nil); got != 0 {
		t.Errorf("Mean of empty = %v, want 0", got)
	}
}

func TestStdDev(t *testing.T) {
	got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2.138) > 0.01 {
		t.Errorf("StdDev = %v, want ~2.138", got)
	}
	if got := StdDev([]float64{5}); got != 0 {
		t.Errorf("StdDev of single value = %v, want 0", got)
	}
}

func TestSlope(t *testing.T) {
	if got := Slope([]float64{1, 2, 3, 4, 5}); math.Abs(got-1) > 1e-9 {
		t.Errorf("Slope of a unit ramp = %v, want 1", got)
	}
	if got := Slope([]float64{10, 8, 6}); math.Abs(got+2) > 1e-9 {
		t.Errorf("Slope of a falling series = %v, want -2", got)
	}
	if got := Slope([]float64{7}); got != 0 {
		t.Errorf("Slope of single value = %v, want 0", got)
	}
}

func TestSMA(t *testing.T) {
	if got := SMA([]float64{1, 2, 3, 4, 5}, 5); got != 3 {
		t.Errorf("SMA over the full window = %v, want 3", got)
	}
	if got := SMA([]float64{1, 2, 3, 4, 5, 6}, 5); got != 4 {
		t.Errorf("SMA of last 5 = %v, want 4", got)
	}
	if got := SMA([]float64{1, 2}, 5); got != 0 {
		t.Errorf("SMA with too little data = %v, want 0", got)
	}
}

func TestAsFloats(t *testing.T) {
	got := AsFloats([]int64{-1, 0, 42})
	want := []float64{-1, 0, 42}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AsFloats[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
