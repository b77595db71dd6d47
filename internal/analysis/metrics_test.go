package analysis

import (
	"math"
	"testing"
)

func TestMeasure(t *testing.T) {
	amps := [][]float64{
		{1, -2},
		{3, 0},
		{-1, 2},
	}
	durations := []float64{0.5, 0.5, 1}

	got := Measure(amps, durations, DefaultMetrics()...)

	tests := []struct {
		name string
		want float64
	}{
		{"control_effort", 9.0 / 6},
		{"fluence", 0.5*(1+4) + 0.5*9 + 1*(1+4)},
		{"peak_amplitude", 3},
		// jumps: (2, 2), (-4, 2)
		{"roughness", math.Sqrt((4 + 4 + 16 + 4) / 4.0)},
	}
	for _, tt := range tests {
		if math.Abs(got[tt.name]-tt.want) > 1e-12 {
			t.Errorf("%s = %g, want %g", tt.name, got[tt.name], tt.want)
		}
	}
}

func TestMeasureResets(t *testing.T) {
	m := NewPeakAmplitude()
	Measure([][]float64{{5}}, []float64{1}, m)
	got := Measure([][]float64{{1}}, []float64{1}, m)
	if got["peak_amplitude"] != 1 {
		t.Errorf("metric not reset between tables: %g", got["peak_amplitude"])
	}
}

func TestMetricsEmpty(t *testing.T) {
	got := Measure(nil, nil, DefaultMetrics()...)
	for name, v := range got {
		if v != 0 {
			t.Errorf("%s on an empty table = %g, want 0", name, v)
		}
	}
}
