package optim

import (
	"fmt"
	"math"
	"time"
)

type State int

const (
	Configured State = iota
	Running
	Converged
	IterExceeded
	TimeExceeded
	Failed
)

func (s State) String() string {
	switch s {
	case Configured:
		return "CONFIGURED"
	case Running:
		return "RUNNING"
	case Converged:
		return "CONVERGED"
	case IterExceeded:
		return "ITER_EXCEEDED"
	case TimeExceeded:
		return "TIME_EXCEEDED"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s State) IsTerminal() bool {
	return s >= Converged && s <= Failed
}

// terminalState applies the per-iteration checks in priority order:
// non-finite error, error target, iteration budget, wall-clock budget.
func terminalState(fidErr float64, iter int, elapsed time.Duration, o Options) (State, bool) {
	switch {
	case math.IsNaN(fidErr) || math.IsInf(fidErr, 0):
		return Failed, true
	case fidErr <= o.FidErrTarg:
		return Converged, true
	case iter >= o.MaxIter:
		return IterExceeded, true
	case elapsed >= o.MaxWallTime:
		return TimeExceeded, true
	}
	return Running, false
}

func reason(s State, fidErr float64, iter int, elapsed time.Duration, o Options, cause error) string {
	switch s {
	case Converged:
		return fmt.Sprintf("fidelity error %.3e reached target %.3e after %d iterations", fidErr, o.FidErrTarg, iter)
	case IterExceeded:
		return fmt.Sprintf("iteration limit %d reached with fidelity error %.3e", o.MaxIter, fidErr)
	case TimeExceeded:
		return fmt.Sprintf("wall time limit %s reached after %s with fidelity error %.3e", o.MaxWallTime, elapsed.Round(time.Millisecond), fidErr)
	case Failed:
		if cause != nil && !IsNumerical(cause) {
			return fmt.Sprintf("evaluation failed at iteration %d: %v", iter, cause)
		}
		if cause != nil {
			return fmt.Sprintf("numerical instability at iteration %d: %v", iter, cause)
		}
		return fmt.Sprintf("non-finite fidelity error at iteration %d", iter)
	}
	return s.String()
}
