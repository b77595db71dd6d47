package optim

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/qctrl/internal/dynamics"
	"github.com/san-kum/qctrl/internal/fidelity"
)

var (
	ErrConfiguration = errors.New("optim: invalid configuration")
	ErrAlreadyRun    = errors.New("optim: optimizer has already run")
)

type Options struct {
	FidErrTarg  float64
	MaxIter     int
	MaxWallTime time.Duration
	PropType    dynamics.PropType
	FidType     fidelity.Type
	PhaseOption fidelity.PhaseOption

	// Workers bounds the goroutines recomputing dirty propagators.
	Workers int
	// InitialStep is the absolute edge length of the starting simplex.
	InitialStep float64
	// XTol and FTol trigger a simplex restart once the vertices or their
	// errors are closer than this.
	XTol float64
	FTol float64

	Logger   *log.Logger
	Observer Observer
}

func DefaultOptions() Options {
	return Options{
		FidErrTarg:  1e-10,
		MaxIter:     500,
		MaxWallTime: 180 * time.Second,
		PropType:    dynamics.PropDiag,
		FidType:     fidelity.Unit,
		PhaseOption: fidelity.PSU,
		Workers:     runtime.GOMAXPROCS(0),
		InitialStep: 0.25,
		XTol:        1e-10,
		FTol:        1e-15,
	}
}

func (o Options) Validate() error {
	switch {
	case !(o.FidErrTarg > 0) || math.IsInf(o.FidErrTarg, 0):
		return fmt.Errorf("fid_err_targ %g must be > 0: %w", o.FidErrTarg, ErrConfiguration)
	case o.MaxIter < 1:
		return fmt.Errorf("max_iter %d must be > 0: %w", o.MaxIter, ErrConfiguration)
	case o.MaxWallTime <= 0:
		return fmt.Errorf("max_wall_time %s must be > 0: %w", o.MaxWallTime, ErrConfiguration)
	case o.Workers < 1:
		return fmt.Errorf("workers %d must be > 0: %w", o.Workers, ErrConfiguration)
	case !(o.InitialStep > 0) || math.IsInf(o.InitialStep, 0):
		return fmt.Errorf("initial step %g must be > 0: %w", o.InitialStep, ErrConfiguration)
	case o.XTol < 0 || o.FTol < 0 || math.IsNaN(o.XTol) || math.IsNaN(o.FTol):
		return fmt.Errorf("tolerances must be >= 0: %w", ErrConfiguration)
	}
	return nil
}

// Progress is what an Observer sees after each iteration.
type Progress struct {
	Iteration   int
	FidErr      float64
	Elapsed     time.Duration
	Evaluations int
	Restarts    int
}

// Observer receives progress from the optimisation loop. It runs on the
// loop goroutine and must not block for long.
type Observer interface {
	OnIteration(Progress)
}

type ObserverFunc func(Progress)

func (f ObserverFunc) OnIteration(p Progress) { f(p) }
