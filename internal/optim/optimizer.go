package optim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/qctrl/internal/dynamics"
	"github.com/san-kum/qctrl/internal/fidelity"
	"github.com/san-kum/qctrl/internal/pulse"
	"github.com/san-kum/qctrl/internal/qobj"
	"github.com/san-kum/qctrl/internal/stats"
	"gonum.org/v1/gonum/floats"
)

// point is one evaluated parameter vector.
type point struct {
	x    []float64
	err  float64
	amps dynamics.Amplitudes
	u    qobj.Operator
}

// Optimizer runs CRAB + Nelder-Mead for one problem. It owns its engine and
// caches; run independent problems on independent optimisers.
type Optimizer struct {
	opts  Options
	log   *log.Logger
	model *dynamics.Model
	grid  dynamics.TimeGrid
	gens  []pulse.Generator
	offs  []int

	engine *dynamics.Engine
	eval   *fidelity.Evaluator
	stats  *stats.Collector

	state State
	last  *point
	best  *point
}

func New(model *dynamics.Model, target qobj.Operator, grid dynamics.TimeGrid, gens []pulse.Generator, opts Options) (*Optimizer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if model == nil {
		return nil, fmt.Errorf("nil model: %w", ErrConfiguration)
	}
	if len(gens) != model.NumCtrls() {
		return nil, fmt.Errorf("%d pulse generators for %d controls: %w", len(gens), model.NumCtrls(), ErrConfiguration)
	}
	if target.Dim() != model.Dim() {
		return nil, fmt.Errorf("target dim %d, model dim %d: %w", target.Dim(), model.Dim(), ErrConfiguration)
	}

	o := &Optimizer{
		opts:  opts,
		log:   opts.Logger,
		model: model,
		grid:  grid,
		gens:  append([]pulse.Generator(nil), gens...),
		offs:  make([]int, len(gens)+1),
		stats: stats.New(),
		state: Configured,
	}
	if o.log == nil {
		o.log = log.Default()
	}
	for i, g := range o.gens {
		if g == nil {
			return nil, fmt.Errorf("nil pulse generator for control %d: %w", i, ErrConfiguration)
		}
	}
	if err := o.layout(); err != nil {
		return nil, err
	}

	var err error
	o.engine, err = dynamics.NewEngine(model, grid, opts.PropType,
		dynamics.WithWorkers(opts.Workers), dynamics.WithStats(o.stats))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	o.eval, err = fidelity.NewEvaluator(target, fidelity.Config{Type: opts.FidType, Phase: opts.PhaseOption}, o.stats)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return o, nil
}

func (o *Optimizer) State() State { return o.state }

// layout recomputes each generator's slice of the flattened parameter
// vector. Generators stay configurable until Run, so Run calls it again
// once they are locked.
func (o *Optimizer) layout() error {
	for i, g := range o.gens {
		o.offs[i+1] = o.offs[i] + g.NumParams()
	}
	if o.NumParams() == 0 {
		return fmt.Errorf("no optimisable pulse parameters: %w", ErrConfiguration)
	}
	return nil
}

// NumParams is the length of the flattened coefficient vector.
func (o *Optimizer) NumParams() int { return o.offs[len(o.gens)] }

// CurrentAmps returns the amplitudes of the last evaluated point (the best
// point once the run is over), or the generators' initial amplitudes before
// the run.
func (o *Optimizer) CurrentAmps() ([][]float64, error) {
	if o.last != nil {
		return o.last.amps.Clone(), nil
	}
	if err := o.layout(); err != nil {
		return nil, err
	}
	a, err := o.amplitudes(o.initialParams())
	if err != nil {
		return nil, fmt.Errorf("initial amplitudes: %w", err)
	}
	return a, nil
}

// Run blocks until a terminal state and returns the result. Budget
// exhaustion and numerical failure are reported through Result.State; the
// error is only for misuse.
func (o *Optimizer) Run() (*Result, error) {
	if o.state != Configured {
		return nil, ErrAlreadyRun
	}
	for _, g := range o.gens {
		if l, ok := g.(pulse.Lockable); ok {
			l.Lock()
		}
	}
	if err := o.layout(); err != nil {
		return nil, err
	}
	o.state = Running
	o.stats.Start()
	start := time.Now()

	logger := o.log.With("params", o.NumParams(), "slots", o.grid.NumSlots(), "prop", o.opts.PropType)
	logger.Info("optimisation started", "target", o.opts.FidErrTarg, "max_iter", o.opts.MaxIter)

	x0 := o.initialParams()
	_, cause := o.evaluate(x0)
	initial := o.last

	nm := newSimplex(o.opts.InitialStep, o.opts.XTol, o.opts.FTol)
	iter := 0
	restarts := 0
	var state State

	for {
		fidErr := math.NaN()
		if o.best != nil && cause == nil {
			fidErr = o.best.err
		}
		var done bool
		if state, done = terminalState(fidErr, iter, time.Since(start), o.opts); done {
			break
		}

		if !nm.ready {
			cause = nm.build(o.best.x, o.best.err, o.evaluate)
		} else {
			cause = nm.iterate(o.evaluate)
		}
		if cause == nil && nm.collapsed() {
			restarts++
			o.stats.Inc(stats.SimplexRestarts, 1)
			bx, bf := nm.best()
			logger.Warn("simplex collapsed, restarting", "iter", iter+1, "fid_err", bf)
			cause = nm.build(bx, bf, o.evaluate)
		}

		iter++
		o.stats.Inc(stats.Iterations, 1)

		if cause != nil {
			continue
		}
		if o.opts.Observer != nil {
			o.opts.Observer.OnIteration(Progress{
				Iteration:   iter,
				FidErr:      o.best.err,
				Elapsed:     time.Since(start),
				Evaluations: o.stats.Snapshot().Count(stats.FidFuncCalls),
				Restarts:    restarts,
			})
		}
		logger.Debug("iteration", "iter", iter, "fid_err", o.best.err)
	}

	o.state = state
	return o.finish(state, initial, iter, start, cause, logger), nil
}

func (o *Optimizer) finish(state State, initial *point, iter int, start time.Time, cause error, logger *log.Logger) *Result {
	final := o.best
	if final == nil {
		final = initial
	}
	o.last = final

	elapsed := time.Since(start)
	o.stats.Stop()

	res := &Result{
		State:            state,
		InitialAmps:      initial.amps.Clone(),
		FinalAmps:        final.amps.Clone(),
		Params:           append([]float64(nil), final.x...),
		InitialFidErr:    initial.err,
		FinalFidErr:      final.err,
		InitialEvolution: initial.u,
		FinalEvolution:   final.u,
		Iterations:       iter,
		WallTime:         elapsed,
		Stats:            o.stats.Snapshot(),
	}
	res.Reason = reason(state, res.FinalFidErr, iter, elapsed, o.opts, cause)

	if state == Failed {
		logger.Warn("optimisation failed", "reason", res.Reason)
	} else {
		logger.Info("optimisation finished", "state", state, "fid_err", res.FinalFidErr, "iter", iter, "wall", elapsed.Round(time.Millisecond))
	}
	return res
}

func (o *Optimizer) initialParams() []float64 {
	x := make([]float64, o.NumParams())
	for i, g := range o.gens {
		copy(x[o.offs[i]:o.offs[i+1]], g.Init())
	}
	return x
}

func (o *Optimizer) amplitudes(x []float64) (dynamics.Amplitudes, error) {
	cols := make([][]float64, len(o.gens))
	for i, g := range o.gens {
		col, err := g.Generate(x[o.offs[i]:o.offs[i+1]])
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return dynamics.AmplitudesFromColumns(cols)
}

// evaluate maps a parameter vector to its fidelity error. An exact repeat of
// the previous point is answered without touching the engine.
func (o *Optimizer) evaluate(x []float64) (float64, error) {
	o.stats.Inc(stats.FidFuncCalls, 1)
	if o.last != nil && floats.Same(o.last.x, x) {
		return o.last.err, nil
	}

	p := &point{x: append([]float64(nil), x...), err: math.NaN()}
	o.last = p
	amps, err := o.amplitudes(x)
	if err != nil {
		return p.err, err
	}
	p.amps = amps

	if !amps.IsValid() {
		return p.err, fmt.Errorf("non-finite control amplitudes: %w", dynamics.ErrNumericalInstability)
	}
	if _, err := o.engine.SetAmplitudes(amps); err != nil {
		return p.err, err
	}
	u, err := o.engine.Evolution()
	if err != nil {
		return p.err, err
	}
	r, err := o.eval.Evaluate(u)
	o.stats.Inc(stats.FidComputed, 1)
	p.u, p.err = u, r.Err
	if err != nil {
		return p.err, err
	}

	if o.best == nil || p.err < o.best.err {
		o.best = p
	}
	return p.err, nil
}

// IsNumerical reports whether err comes from a non-finite propagator,
// amplitude or fidelity value.
func IsNumerical(err error) bool {
	return errors.Is(err, dynamics.ErrNumericalInstability) ||
		errors.Is(err, fidelity.ErrNumericalInstability) ||
		errors.Is(err, errNonFinite)
}
