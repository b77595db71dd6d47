package dynamics

import (
	"fmt"
	"math"

	"github.com/san-kum/qctrl/internal/qobj"
)

// Model is the immutable description of the controlled system.
type Model struct {
	drift qobj.Operator
	ctrls []qobj.Operator
	start qobj.Operator
}

// NewModel validates that all operators share one dimension. An empty start
// operator means the identity.
func NewModel(drift qobj.Operator, ctrls []qobj.Operator, start qobj.Operator) (*Model, error) {
	if drift.IsEmpty() {
		return nil, fmt.Errorf("empty drift operator: %w", ErrConfiguration)
	}
	d := drift.Dim()
	if len(ctrls) == 0 {
		return nil, fmt.Errorf("no control operators: %w", ErrConfiguration)
	}
	for i, c := range ctrls {
		if c.Dim() != d {
			return nil, fmt.Errorf("control %d has dim %d, drift has %d: %w", i, c.Dim(), d, ErrConfiguration)
		}
	}
	if start.IsEmpty() {
		start = qobj.Identity(d)
	} else if start.Dim() != d {
		return nil, fmt.Errorf("start operator has dim %d, drift has %d: %w", start.Dim(), d, ErrConfiguration)
	}

	c := make([]qobj.Operator, len(ctrls))
	copy(c, ctrls)
	return &Model{drift: drift, ctrls: c, start: start}, nil
}

func (m *Model) Dim() int                 { return m.drift.Dim() }
func (m *Model) NumCtrls() int            { return len(m.ctrls) }
func (m *Model) Drift() qobj.Operator     { return m.drift }
func (m *Model) Ctrl(i int) qobj.Operator { return m.ctrls[i] }
func (m *Model) Start() qobj.Operator     { return m.start }

func (m *Model) IsHermitian(tol float64) bool {
	if !m.drift.IsHermitian(tol) {
		return false
	}
	for _, c := range m.ctrls {
		if !c.IsHermitian(tol) {
			return false
		}
	}
	return true
}

// Generator returns H_t = H_drift + Σ_c amps[c] H_c.
func (m *Model) Generator(amps []float64) qobj.Operator {
	h := m.drift
	for c, a := range amps {
		if a == 0 {
			continue
		}
		h = h.AddScaled(complex(a, 0), m.ctrls[c])
	}
	return h
}

// TimeGrid holds the slot durations of the evolution.
type TimeGrid struct {
	durations []float64
	evoTime   float64
}

// NewUniformGrid splits evoTime into nTS equal slots.
func NewUniformGrid(nTS int, evoTime float64) (TimeGrid, error) {
	if nTS < 1 {
		return TimeGrid{}, fmt.Errorf("n_ts must be positive, got %d: %w", nTS, ErrConfiguration)
	}
	if !(evoTime > 0) || math.IsInf(evoTime, 0) {
		return TimeGrid{}, fmt.Errorf("evo_time must be positive, got %g: %w", evoTime, ErrConfiguration)
	}
	d := make([]float64, nTS)
	dt := evoTime / float64(nTS)
	for i := range d {
		d[i] = dt
	}
	return TimeGrid{durations: d, evoTime: evoTime}, nil
}

// NewGrid uses explicit slot durations.
func NewGrid(durations []float64) (TimeGrid, error) {
	if len(durations) == 0 {
		return TimeGrid{}, fmt.Errorf("no time slots: %w", ErrConfiguration)
	}
	total := 0.0
	for i, d := range durations {
		if !(d > 0) || math.IsInf(d, 0) {
			return TimeGrid{}, fmt.Errorf("slot %d duration %g: %w", i, d, ErrConfiguration)
		}
		total += d
	}
	c := make([]float64, len(durations))
	copy(c, durations)
	return TimeGrid{durations: c, evoTime: total}, nil
}

func (g TimeGrid) NumSlots() int          { return len(g.durations) }
func (g TimeGrid) EvoTime() float64       { return g.evoTime }
func (g TimeGrid) Duration(k int) float64 { return g.durations[k] }

func (g TimeGrid) Durations() []float64 {
	c := make([]float64, len(g.durations))
	copy(c, g.durations)
	return c
}

// Starts returns the start time of every slot.
func (g TimeGrid) Starts() []float64 {
	s := make([]float64, len(g.durations))
	t := 0.0
	for i, d := range g.durations {
		s[i] = t
		t += d
	}
	return s
}
