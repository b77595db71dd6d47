package analysis

import (
	"errors"
	"math"
	"testing"
)

func TestNextPow2(t *testing.T) {
	tests := []struct{ n, want int }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {50, 64}, {64, 64}, {65, 128},
	}
	for _, tt := range tests {
		if got := NextPow2(tt.n); got != tt.want {
			t.Errorf("NextPow2(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestPowerSpectrumSine(t *testing.T) {
	const (
		n  = 64
		dt = 0.1
		f  = 1.25 // exactly bin 8 of 64 at dt 0.1
	)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * f * float64(i) * dt)
	}

	spec, err := PowerSpectrum(samples, dt)
	if err != nil {
		t.Fatal(err)
	}
	if len(spec.Freqs) != n/2+1 {
		t.Fatalf("expected %d bins, got %d", n/2+1, len(spec.Freqs))
	}

	freq, power := spec.Dominant()
	if math.Abs(freq-f) > 1e-12 {
		t.Errorf("dominant frequency %g, want %g", freq, f)
	}
	if power <= 0 {
		t.Error("expected positive peak power")
	}
	// Parseval: sum of x² equals the two-sided power sum
	var energy float64
	for _, x := range samples {
		energy += x * x
	}
	twoSided := spec.Power[0] + spec.Power[n/2]
	for k := 1; k < n/2; k++ {
		twoSided += 2 * spec.Power[k]
	}
	if math.Abs(twoSided-energy) > 1e-9 {
		t.Errorf("parseval: spectrum %g, signal %g", twoSided, energy)
	}
}

func TestPowerSpectrumPadding(t *testing.T) {
	samples := make([]float64, 50)
	for i := range samples {
		samples[i] = math.Cos(2 * math.Pi * float64(i) / 10)
	}
	spec, err := PowerSpectrum(samples, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(spec.Power) != 33 {
		t.Fatalf("expected padding to 64, got %d bins", len(spec.Power))
	}
	freq, _ := spec.Dominant()
	if math.Abs(freq-0.1) > 1.0/64 {
		t.Errorf("dominant frequency %g, want about 0.1", freq)
	}
}

func TestPowerSpectrumConstant(t *testing.T) {
	spec, err := PowerSpectrum([]float64{3, 3, 3, 3}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if spec.Total() > 1e-24 {
		t.Errorf("constant input should have no power after mean removal, got %g", spec.Total())
	}
	if f, _ := spec.Dominant(); f != 0 {
		t.Errorf("flat spectrum should report 0, got %g", f)
	}
}

func TestPowerSpectrumErrors(t *testing.T) {
	if _, err := PowerSpectrum(nil, 1); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
	for _, dt := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := PowerSpectrum([]float64{1, 2}, dt); !errors.Is(err, ErrSpacing) {
			t.Errorf("dt %g: expected ErrSpacing, got %v", dt, err)
		}
	}
}
