package optim

import (
	"time"

	"github.com/san-kum/qctrl/internal/qobj"
	"github.com/san-kum/qctrl/internal/stats"
)

// Result is built once when the optimiser reaches a terminal state.
// Amplitude tables are n_ts × n_ctrls.
type Result struct {
	State  State
	Reason string

	InitialAmps [][]float64
	FinalAmps   [][]float64
	// Params is the flattened coefficient vector behind FinalAmps.
	Params []float64

	InitialFidErr    float64
	FinalFidErr      float64
	InitialEvolution qobj.Operator
	FinalEvolution   qobj.Operator

	Iterations int
	WallTime   time.Duration
	Stats      stats.Stats
}

func (r *Result) Converged() bool { return r.State == Converged }
