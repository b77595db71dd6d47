package optim

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	nmReflect  = 1.0
	nmExpand   = 2.0
	nmContract = 0.5
	nmShrink   = 0.5
)

var errNonFinite = errors.New("non-finite fidelity error")

type objective func(x []float64) (float64, error)

// simplex is a Nelder-Mead search that advances one iteration per step, so
// the caller can check its budgets between steps.
type simplex struct {
	step float64
	xtol float64
	ftol float64

	verts [][]float64
	vals  []float64
	ready bool

	centroid []float64
	trial    []float64
	trial2   []float64
}

func newSimplex(step, xtol, ftol float64) *simplex {
	return &simplex{step: step, xtol: xtol, ftol: ftol}
}

// best returns the lowest vertex and its value.
func (s *simplex) best() ([]float64, float64) {
	return s.verts[0], s.vals[0]
}

// build places a fresh simplex around x0, whose value f0 is already known.
func (s *simplex) build(x0 []float64, f0 float64, f objective) error {
	n := len(x0)
	s.verts = make([][]float64, n+1)
	s.vals = make([]float64, n+1)
	s.verts[0] = append([]float64(nil), x0...)
	s.vals[0] = f0
	for i := 1; i <= n; i++ {
		v := append([]float64(nil), x0...)
		v[i-1] += s.step
		fv, err := eval(f, v)
		if err != nil {
			return err
		}
		s.verts[i], s.vals[i] = v, fv
	}
	s.centroid = make([]float64, n)
	s.trial = make([]float64, n)
	s.trial2 = make([]float64, n)
	s.sort()
	s.ready = true
	return nil
}

// iterate performs one reflection/expansion/contraction/shrink move.
func (s *simplex) iterate(f objective) error {
	n := len(s.centroid)
	worst := s.verts[n]
	fBest, fWorst, fNext := s.vals[0], s.vals[n], s.vals[n-1]

	for i := range s.centroid {
		s.centroid[i] = 0
	}
	for _, v := range s.verts[:n] {
		floats.Add(s.centroid, v)
	}
	floats.Scale(1/float64(n), s.centroid)

	// xr = c + α(c - w)
	floats.SubTo(s.trial, s.centroid, worst)
	floats.AddScaledTo(s.trial, s.centroid, nmReflect, s.trial)
	fr, err := eval(f, s.trial)
	if err != nil {
		return err
	}

	switch {
	case fr < fBest:
		// xe = c + γ(xr - c)
		floats.SubTo(s.trial2, s.trial, s.centroid)
		floats.AddScaledTo(s.trial2, s.centroid, nmExpand, s.trial2)
		fe, err := eval(f, s.trial2)
		if err != nil {
			return err
		}
		if fe < fr {
			s.replaceWorst(s.trial2, fe)
		} else {
			s.replaceWorst(s.trial, fr)
		}
	case fr < fNext:
		s.replaceWorst(s.trial, fr)
	case fr < fWorst:
		// outside: xc = c + ρ(xr - c)
		floats.SubTo(s.trial2, s.trial, s.centroid)
		floats.AddScaledTo(s.trial2, s.centroid, nmContract, s.trial2)
		fc, err := eval(f, s.trial2)
		if err != nil {
			return err
		}
		if fc <= fr {
			s.replaceWorst(s.trial2, fc)
		} else if err := s.shrink(f); err != nil {
			return err
		}
	default:
		// inside: xc = c + ρ(w - c)
		floats.SubTo(s.trial2, worst, s.centroid)
		floats.AddScaledTo(s.trial2, s.centroid, nmContract, s.trial2)
		fc, err := eval(f, s.trial2)
		if err != nil {
			return err
		}
		if fc < fWorst {
			s.replaceWorst(s.trial2, fc)
		} else if err := s.shrink(f); err != nil {
			return err
		}
	}
	s.sort()
	return nil
}

func (s *simplex) replaceWorst(x []float64, fx float64) {
	n := len(s.verts) - 1
	copy(s.verts[n], x)
	s.vals[n] = fx
}

func (s *simplex) shrink(f objective) error {
	best := s.verts[0]
	for i := 1; i < len(s.verts); i++ {
		v := s.verts[i]
		floats.Sub(v, best)
		floats.AddScaledTo(v, best, nmShrink, v)
		fv, err := eval(f, v)
		if err != nil {
			return err
		}
		s.vals[i] = fv
	}
	return nil
}

func (s *simplex) sort() {
	idx := make([]int, len(s.vals))
	floats.Argsort(s.vals, idx)
	verts := make([][]float64, len(idx))
	for i, j := range idx {
		verts[i] = s.verts[j]
	}
	s.verts = verts
}

// collapsed reports whether the simplex has shrunk below the tolerances.
func (s *simplex) collapsed() bool {
	n := len(s.verts) - 1
	if s.vals[n]-s.vals[0] <= s.ftol {
		return true
	}
	size := 0.0
	for _, v := range s.verts[1:] {
		size = math.Max(size, floats.Distance(v, s.verts[0], math.Inf(1)))
	}
	return size <= s.xtol
}

func eval(f objective, x []float64) (float64, error) {
	v, err := f(x)
	if err != nil {
		return v, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v, errNonFinite
	}
	return v, nil
}
