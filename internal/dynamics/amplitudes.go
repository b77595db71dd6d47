package dynamics

import (
	"fmt"
	"math"
)

// Amplitudes is an n_ts × n_ctrls table; row t holds the constant amplitude
// of every control during slot t.
type Amplitudes [][]float64

func NewAmplitudes(nTS, nCtrls int) Amplitudes {
	a := make(Amplitudes, nTS)
	for i := range a {
		a[i] = make([]float64, nCtrls)
	}
	return a
}

// AmplitudesFromColumns builds a table from one sequence per control.
func AmplitudesFromColumns(cols [][]float64) (Amplitudes, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("no control columns: %w", ErrConfiguration)
	}
	n := len(cols[0])
	a := NewAmplitudes(n, len(cols))
	for c, col := range cols {
		if len(col) != n {
			return nil, fmt.Errorf("control %d has %d samples, want %d: %w", c, len(col), n, ErrConfiguration)
		}
		for t, v := range col {
			a[t][c] = v
		}
	}
	return a, nil
}

func (a Amplitudes) Dims() (nTS, nCtrls int) {
	if len(a) == 0 {
		return 0, 0
	}
	return len(a), len(a[0])
}

func (a Amplitudes) Clone() Amplitudes {
	c := make(Amplitudes, len(a))
	for i, row := range a {
		c[i] = make([]float64, len(row))
		copy(c[i], row)
	}
	return c
}

// Column returns a copy of control c's sequence.
func (a Amplitudes) Column(c int) []float64 {
	col := make([]float64, len(a))
	for t, row := range a {
		col[t] = row[c]
	}
	return col
}

func (a Amplitudes) IsValid() bool {
	for _, row := range a {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func (a Amplitudes) check(nTS, nCtrls int) error {
	if len(a) != nTS {
		return fmt.Errorf("amplitudes have %d slots, grid has %d: %w", len(a), nTS, ErrConfiguration)
	}
	for t, row := range a {
		if len(row) != nCtrls {
			return fmt.Errorf("slot %d has %d controls, model has %d: %w", t, len(row), nCtrls, ErrConfiguration)
		}
	}
	return nil
}
