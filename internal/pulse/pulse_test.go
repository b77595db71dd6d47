package pulse

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/qctrl/internal/dynamics"
)

func grid(t *testing.T, nTS int, evoTime float64) dynamics.TimeGrid {
	t.Helper()
	g, err := dynamics.NewUniformGrid(nTS, evoTime)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestShapes(t *testing.T) {
	g := grid(t, 4, 4)
	tests := []struct {
		kind Kind
		want []float64
	}{
		{Zero, []float64{0, 0, 0, 0}},
		{Lin, []float64{0, 0.25, 0.5, 0.75}},
		{Square, []float64{1, 1, -1, -1}},
		{Saw, []float64{-1, -0.5, 0, 0.5}},
		{Triangle, []float64{-1, 0, 1, 0}},
		{Sine, []float64{0, 1, 0, -1}},
	}

	for _, tt := range tests {
		s, err := NewShape(tt.kind, g, DefaultShapeOptions())
		if err != nil {
			t.Fatalf("%v: %v", tt.kind, err)
		}
		got, err := s.Generate(nil)
		if err != nil {
			t.Fatalf("%v: %v", tt.kind, err)
		}
		for i := range tt.want {
			if math.Abs(got[i]-tt.want[i]) > 1e-12 {
				t.Errorf("%v[%d] = %f, want %f", tt.kind, i, got[i], tt.want[i])
			}
		}
		if s.NumParams() != 0 || s.Init() != nil {
			t.Errorf("%v should take no parameters", tt.kind)
		}
	}
}

func TestShapeScalingOffset(t *testing.T) {
	opts := DefaultShapeOptions()
	opts.Scaling = 2
	opts.Offset = 0.5
	s, err := NewShape(Square, grid(t, 2, 1), opts)
	if err != nil {
		t.Fatal(err)
	}
	got := s.Samples()
	if got[0] != 2.5 || got[1] != -1.5 {
		t.Errorf("got %v, want [2.5 -1.5]", got)
	}
}

func TestGaussianEdge(t *testing.T) {
	g := grid(t, 100, 10)
	s, err := NewShape(GaussianEdge, g, DefaultShapeOptions())
	if err != nil {
		t.Fatal(err)
	}
	got := s.Samples()
	if math.Abs(got[0]) > 1e-12 {
		t.Errorf("start should be ~0, got %g", got[0])
	}
	if math.Abs(got[50]-1) > 1e-6 {
		t.Errorf("middle should be ~1, got %g", got[50])
	}
	if math.Abs(got[99]) > 1e-12 {
		t.Errorf("end should be ~0, got %g", got[99])
	}
}

func TestGaussianEdgeCoarseGrid(t *testing.T) {
	for _, n := range []int{2, 5, 10} {
		s, err := NewShape(GaussianEdge, grid(t, n, 1), DefaultShapeOptions())
		if err != nil {
			t.Fatal(err)
		}
		got := s.Samples()
		for i := 0; i < n/2; i++ {
			if math.Abs(got[i]-got[n-1-i]) > 1e-12 {
				t.Errorf("n=%d: sample %d = %g, mirror = %g", n, i, got[i], got[n-1-i])
			}
		}
		if math.Abs(got[0]) > 1e-12 || math.Abs(got[n-1]) > 1e-12 {
			t.Errorf("n=%d: edges should be ~0, got %g and %g", n, got[0], got[n-1])
		}
	}

	s, err := NewShape(GaussianEdge, grid(t, 1, 1), DefaultShapeOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Samples()[0]; math.Abs(got-1) > 1e-9 {
		t.Errorf("single slot should sit at the plateau, got %g", got)
	}
}

func TestRndReproducible(t *testing.T) {
	g := grid(t, 20, 1)
	opts := DefaultShapeOptions()
	opts.Seed = 7
	a, _ := NewShape(Rnd, g, opts)
	b, _ := NewShape(Rnd, g, opts)
	sa, sb := a.Samples(), b.Samples()
	for i := range sa {
		if sa[i] != sb[i] {
			t.Fatalf("sample %d differs: %g vs %g", i, sa[i], sb[i])
		}
		if sa[i] < -1 || sa[i] > 1 {
			t.Errorf("sample %d out of range: %g", i, sa[i])
		}
	}
}

func TestShapeRejectsCrab(t *testing.T) {
	if _, err := NewShape(Crab, grid(t, 2, 1), DefaultShapeOptions()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
	if _, err := NewShape(Lin, dynamics.TimeGrid{}, DefaultShapeOptions()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for empty grid, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	for k := Zero; k <= Crab; k++ {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("gaussian_edge"); err != nil {
		t.Errorf("lower case should parse: %v", err)
	}
	if _, err := ParseKind("SPLINE"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestBounds(t *testing.T) {
	if _, err := NewBounds(1, -1); !errors.Is(err, ErrConfiguration) {
		t.Errorf("lbound > ubound should fail, got %v", err)
	}
	if _, err := NewBounds(math.NaN(), 1); !errors.Is(err, ErrConfiguration) {
		t.Errorf("NaN bound should fail, got %v", err)
	}

	b, _ := NewBounds(-1, 2)
	tests := []struct {
		in, want float64
	}{
		{-5, -1},
		{0.5, 0.5},
		{3, 2},
	}
	for _, tt := range tests {
		if got := b.Apply(tt.in); got != tt.want {
			t.Errorf("Apply(%g) = %g, want %g", tt.in, got, tt.want)
		}
	}

	b.Soft = true
	if got := b.Apply(0.5); got != 0.5 {
		t.Errorf("soft bound should keep the midpoint, got %g", got)
	}
	for _, v := range []float64{-1e6, -2, 1.9, 1e6} {
		if got := b.Apply(v); got < -1 || got > 2 {
			t.Errorf("soft Apply(%g) = %g out of bounds", v, got)
		}
	}
	if !math.IsNaN(b.Apply(math.NaN())) {
		t.Error("NaN should pass through")
	}
	if Unbounded().IsSet() {
		t.Error("Unbounded should not be set")
	}
}
