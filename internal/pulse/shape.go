package pulse

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/qctrl/internal/dynamics"
)

type ShapeOptions struct {
	Scaling float64
	Offset  float64
	// Start and End are the LIN endpoints before scaling.
	Start float64
	End   float64
	// NumWaves is the number of periods over the horizon for periodic shapes.
	NumWaves float64
	// DecayTime is the GAUSSIAN_EDGE decay; 0 means evo_time/10.
	DecayTime float64
	Seed      int64
	// The zero Bounds value means unbounded.
	Bounds Bounds
}

func DefaultShapeOptions() ShapeOptions {
	return ShapeOptions{
		Scaling:  1,
		End:      1,
		NumWaves: 1,
		Bounds:   Unbounded(),
	}
}

// Shape is a parameterless generator. Its samples are fixed at construction.
type Shape struct {
	kind    Kind
	opts    ShapeOptions
	samples []float64
}

func NewShape(kind Kind, g dynamics.TimeGrid, opts ShapeOptions) (*Shape, error) {
	if kind == Crab || kind < 0 || int(kind) >= len(kindNames) {
		return nil, fmt.Errorf("%v is not a fixed shape: %w", kind, ErrConfiguration)
	}
	if g.NumSlots() < 1 || !(g.EvoTime() > 0) {
		return nil, fmt.Errorf("empty time grid: %w", ErrConfiguration)
	}
	for _, v := range []float64{opts.Scaling, opts.Offset, opts.Start, opts.End, opts.NumWaves, opts.DecayTime} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite %v option: %w", kind, ErrConfiguration)
		}
	}
	if opts.DecayTime < 0 {
		return nil, fmt.Errorf("decay time %g: %w", opts.DecayTime, ErrConfiguration)
	}
	if opts.Bounds == (Bounds{}) {
		opts.Bounds = Unbounded()
	}
	if opts.Bounds.Lower > opts.Bounds.Upper {
		return nil, fmt.Errorf("lbound %g > ubound %g: %w", opts.Bounds.Lower, opts.Bounds.Upper, ErrConfiguration)
	}

	s := &Shape{kind: kind, opts: opts}
	times := g.Starts()
	if kind == GaussianEdge {
		times = edgeTimes(g.NumSlots(), g.EvoTime())
	}
	s.samples = s.sample(times, g.EvoTime())
	return s, nil
}

// edgeTimes spreads n samples over [0, T] including both ends, so an
// envelope pinned at 0 and T is symmetric. A single slot sits at T/2.
func edgeTimes(n int, T float64) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = T / 2
		return out
	}
	for k := range out {
		out[k] = float64(k) * T / float64(n-1)
	}
	return out
}

func (s *Shape) Kind() Kind      { return s.kind }
func (s *Shape) NumParams() int  { return 0 }
func (s *Shape) Init() []float64 { return nil }

func (s *Shape) Generate(params []float64) ([]float64, error) {
	if len(params) != 0 {
		return nil, fmt.Errorf("%v takes no parameters, got %d: %w", s.kind, len(params), ErrConfiguration)
	}
	return s.Samples(), nil
}

func (s *Shape) Samples() []float64 {
	out := make([]float64, len(s.samples))
	copy(out, s.samples)
	return out
}

func (s *Shape) sample(starts []float64, T float64) []float64 {
	o := s.opts
	out := make([]float64, len(starts))

	var rng *rand.Rand
	if s.kind == Rnd {
		rng = rand.New(rand.NewSource(o.Seed))
	}
	tau := o.DecayTime
	if tau == 0 {
		tau = T / 10
	}

	for i, t := range starts {
		phase := o.NumWaves * t / T
		frac := phase - math.Floor(phase)

		var v float64
		switch s.kind {
		case Zero:
		case Rnd:
			v = 2*rng.Float64() - 1
		case Lin:
			v = o.Start + (o.End-o.Start)*t/T
		case Sine:
			v = math.Sin(2 * math.Pi * phase)
		case Square:
			v = 1
			if frac >= 0.5 {
				v = -1
			}
		case Saw:
			v = 2*frac - 1
		case Triangle:
			v = 1 - 4*math.Abs(frac-0.5)
		case GaussianEdge:
			v = 1 - math.Exp(-(t/tau)*(t/tau)) - math.Exp(-((t-T)/tau)*((t-T)/tau))
		}
		out[i] = o.Offset + o.Scaling*v
	}
	o.Bounds.applyAll(out)
	return out
}
