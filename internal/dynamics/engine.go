package dynamics

import (
	"fmt"
	"math"
	"time"

	"github.com/san-kum/qctrl/internal/qobj"
	"github.com/san-kum/qctrl/internal/stats"
)

const hermitianTol = 1e-10

// Engine maps control amplitudes to the total evolution operator and keeps
// per-slot propagators plus forward and onward products between calls.
//
// SetAmplitudes is the invalidation point: only slots whose amplitude row
// changed are recomputed, forward products are kept up to the first changed
// slot and onward products from the last changed slot on.
type Engine struct {
	model   *Model
	grid    TimeGrid
	prop    PropType
	workers int
	stats   *stats.Collector

	amps  Amplitudes
	slots []slotEntry
	dirty []bool

	fwd       []qobj.Operator // fwd[k] = P_{k-1} … P_0 U_0
	fwdValid  int             // fwd[0..fwdValid] are current
	onwd      []qobj.Operator // onwd[k] = P_{n-1} … P_k
	onwdValid int             // onwd[onwdValid..n-1] are current
}

type EngineOption func(*Engine)

// WithWorkers bounds the goroutines used to recompute dirty slots.
// 1 keeps everything on the calling goroutine.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) { e.workers = n }
}

func WithStats(c *stats.Collector) EngineOption {
	return func(e *Engine) { e.stats = c }
}

func NewEngine(m *Model, g TimeGrid, p PropType, opts ...EngineOption) (*Engine, error) {
	if m == nil {
		return nil, fmt.Errorf("nil model: %w", ErrConfiguration)
	}
	n := g.NumSlots()
	if n < 1 {
		return nil, fmt.Errorf("empty time grid: %w", ErrConfiguration)
	}
	switch p {
	case PropDiag:
		if !m.IsHermitian(hermitianTol) {
			return nil, fmt.Errorf("DIAG requires Hermitian drift and controls: %w", ErrConfiguration)
		}
	case PropFrechet:
	default:
		return nil, fmt.Errorf("unknown %v: %w", p, ErrConfiguration)
	}

	e := &Engine{
		model:     m,
		grid:      g,
		prop:      p,
		workers:   1,
		amps:      NewAmplitudes(n, m.NumCtrls()),
		slots:     make([]slotEntry, n),
		dirty:     make([]bool, n),
		fwd:       make([]qobj.Operator, n+1),
		onwd:      make([]qobj.Operator, n),
		onwdValid: n,
	}
	for _, opt := range opts {
		opt(e)
	}
	for k := range e.dirty {
		e.dirty[k] = true
	}
	e.fwd[0] = m.Start()
	return e, nil
}

func (e *Engine) Model() *Model      { return e.model }
func (e *Engine) Grid() TimeGrid     { return e.grid }
func (e *Engine) PropType() PropType { return e.prop }

// Amplitudes returns a copy of the current table.
func (e *Engine) Amplitudes() Amplitudes { return e.amps.Clone() }

// SetAmplitudes installs a new table, marks every slot whose row changed as
// dirty and returns how many individual values changed.
func (e *Engine) SetAmplitudes(a Amplitudes) (int, error) {
	if err := a.check(e.grid.NumSlots(), e.model.NumCtrls()); err != nil {
		return 0, err
	}

	changed := 0
	first, last := -1, -1
	for t, row := range a {
		for c, v := range row {
			if math.Float64bits(v) != math.Float64bits(e.amps[t][c]) {
				changed++
			}
		}
		copy(e.amps[t], row)

		if e.slots[t].valid && e.slots[t].key.matches(rowHash(row), row) {
			continue
		}
		e.dirty[t] = true
		if first < 0 {
			first = t
		}
		last = t
	}
	if first >= 0 {
		e.invalidateRange(first, last)
	}

	e.stats.Inc(stats.AmpUpdates, 1)
	e.stats.Inc(stats.AmpsChanged, changed)
	return changed, nil
}

// Invalidate drops the cached propagators of the given slots, or of every
// slot when called without arguments.
func (e *Engine) Invalidate(slots ...int) error {
	if len(slots) == 0 {
		for k := range e.slots {
			e.slots[k].valid = false
			e.dirty[k] = true
		}
		e.invalidateRange(0, len(e.slots)-1)
		return nil
	}
	for _, k := range slots {
		if k < 0 || k >= len(e.slots) {
			return &SlotError{Slot: k, Wrapped: ErrSlotRange}
		}
	}
	for _, k := range slots {
		e.slots[k].valid = false
		e.dirty[k] = true
		e.invalidateRange(k, k)
	}
	return nil
}

func (e *Engine) invalidateRange(first, last int) {
	if first < e.fwdValid {
		e.fwdValid = first
	}
	if last+1 > e.onwdValid {
		e.onwdValid = last + 1
	}
}

// refresh recomputes every dirty slot. Generators are built serially, the
// exponentials are spread over the worker goroutines.
func (e *Engine) refresh() error {
	var todo []int
	for k, d := range e.dirty {
		if d {
			todo = append(todo, k)
		}
	}
	if len(todo) == 0 {
		return nil
	}

	gens := make([]qobj.Operator, len(todo))
	stopH := e.stats.Time(stats.PhaseHamiltonian)
	for i, k := range todo {
		gens[i] = e.model.Generator(e.amps[k])
	}
	stopH()

	props := make([]qobj.Operator, len(todo))
	eigs := make([]*Eigensystem, len(todo))
	errs := make([]error, len(todo))

	t0 := time.Now()
	ParallelFor(len(todo), e.workers, 4, func(start, end int) {
		for i := start; i < end; i++ {
			k := todo[i]
			props[i], eigs[i], errs[i] = e.prop.propagate(gens[i], e.grid.Duration(k))
		}
	})
	e.stats.Add(stats.PhasePropagator, time.Since(t0))

	computed := 0
	var firstErr error
	for i, k := range todo {
		if errs[i] != nil {
			if firstErr == nil {
				firstErr = &SlotError{Slot: k, Wrapped: errs[i]}
			}
			continue
		}
		e.slots[k] = slotEntry{
			key:   newSlotKey(e.amps[k]),
			gen:   gens[i],
			prop:  props[i],
			eigen: eigs[i],
			valid: true,
		}
		e.dirty[k] = false
		computed++
	}
	e.stats.Inc(stats.PropsComputed, computed)
	return firstErr
}

// Evolution returns P_{n-1} … P_0 U_0 for the current amplitudes.
func (e *Engine) Evolution() (qobj.Operator, error) {
	return e.Forward(e.grid.NumSlots())
}

// Forward returns the evolution up to the start of slot k, k in [0, n_ts].
func (e *Engine) Forward(k int) (qobj.Operator, error) {
	n := e.grid.NumSlots()
	if k < 0 || k > n {
		return qobj.Operator{}, &SlotError{Slot: k, Wrapped: ErrSlotRange}
	}
	if err := e.refresh(); err != nil {
		return qobj.Operator{}, err
	}
	if k > e.fwdValid {
		done := e.stats.Time(stats.PhaseForward)
		for j := e.fwdValid; j < k; j++ {
			e.fwd[j+1] = e.slots[j].prop.Mul(e.fwd[j])
		}
		e.fwdValid = k
		done()
	}
	return e.fwd[k], nil
}

// Onward returns P_{n-1} … P_k, k in [0, n_ts).
func (e *Engine) Onward(k int) (qobj.Operator, error) {
	n := e.grid.NumSlots()
	if k < 0 || k >= n {
		return qobj.Operator{}, &SlotError{Slot: k, Wrapped: ErrSlotRange}
	}
	if err := e.refresh(); err != nil {
		return qobj.Operator{}, err
	}
	if k < e.onwdValid {
		done := e.stats.Time(stats.PhaseOnward)
		for j := e.onwdValid - 1; j >= k; j-- {
			if j == n-1 {
				e.onwd[j] = e.slots[j].prop
			} else {
				e.onwd[j] = e.onwd[j+1].Mul(e.slots[j].prop)
			}
		}
		e.onwdValid = k
		done()
	}
	return e.onwd[k], nil
}

// Propagator returns the single-slot propagator P_k.
func (e *Engine) Propagator(k int) (qobj.Operator, error) {
	if k < 0 || k >= e.grid.NumSlots() {
		return qobj.Operator{}, &SlotError{Slot: k, Wrapped: ErrSlotRange}
	}
	if err := e.refresh(); err != nil {
		return qobj.Operator{}, err
	}
	return e.slots[k].prop, nil
}

// Eigen returns the eigensystem kept for slot k under DIAG.
func (e *Engine) Eigen(k int) (*Eigensystem, bool) {
	if k < 0 || k >= len(e.slots) || !e.slots[k].valid || e.dirty[k] {
		return nil, false
	}
	return e.slots[k].eigen, e.slots[k].eigen != nil
}
