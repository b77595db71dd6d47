// Package fidelity scores an achieved evolution operator against a target.
//
// Errors are ≥ 0 and 0 means an exact match under the chosen measure.
package fidelity

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"github.com/san-kum/qctrl/internal/qobj"
	"github.com/san-kum/qctrl/internal/stats"
)

const unitarityTol = 1e-12

var (
	ErrConfiguration        = errors.New("fidelity: invalid configuration")
	ErrNumericalInstability = errors.New("fidelity: non-finite fidelity error")
)

type Type int

const (
	// Unit compares unitaries through the normalised overlap Tr(V†U)/d.
	Unit Type = iota
	// TraceDiff uses the Frobenius distance ‖U - V‖²/(2d), phase sensitive.
	TraceDiff
)

func (t Type) String() string {
	switch t {
	case Unit:
		return "UNIT"
	case TraceDiff:
		return "TRACEDIFF"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

func ParseType(s string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UNIT", "":
		return Unit, nil
	case "TRACEDIFF":
		return TraceDiff, nil
	default:
		return 0, fmt.Errorf("unknown fid_type %q: %w", s, ErrConfiguration)
	}
}

func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

type PhaseOption int

const (
	// PSU ignores global phase.
	PSU PhaseOption = iota
	// SU keeps global phase.
	SU
)

func (p PhaseOption) String() string {
	switch p {
	case PSU:
		return "PSU"
	case SU:
		return "SU"
	default:
		return fmt.Sprintf("PhaseOption(%d)", int(p))
	}
}

func ParsePhaseOption(s string) (PhaseOption, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PSU", "":
		return PSU, nil
	case "SU":
		return SU, nil
	default:
		return 0, fmt.Errorf("unknown phase_option %q: %w", s, ErrConfiguration)
	}
}

func (p PhaseOption) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *PhaseOption) UnmarshalText(b []byte) error {
	v, err := ParsePhaseOption(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

type Config struct {
	Type  Type
	Phase PhaseOption
	// Scale multiplies the TRACEDIFF distance; 0 means 1/(2d).
	Scale float64
}

// Result is one evaluation: the error and the operator it was computed for.
type Result struct {
	Err       float64
	Evolution qobj.Operator
}

type Evaluator struct {
	target qobj.Operator
	cfg    Config
	norm   float64 // ‖V‖_F²
	stats  *stats.Collector
}

func NewEvaluator(target qobj.Operator, cfg Config, col *stats.Collector) (*Evaluator, error) {
	if target.IsEmpty() {
		return nil, fmt.Errorf("empty target: %w", ErrConfiguration)
	}
	if !target.IsFinite() {
		return nil, fmt.Errorf("non-finite target: %w", ErrConfiguration)
	}
	switch cfg.Type {
	case Unit:
		if cfg.Phase != PSU && cfg.Phase != SU {
			return nil, fmt.Errorf("%v: %w", cfg.Phase, ErrConfiguration)
		}
	case TraceDiff:
		if cfg.Scale < 0 || math.IsNaN(cfg.Scale) {
			return nil, fmt.Errorf("trace diff scale %g: %w", cfg.Scale, ErrConfiguration)
		}
		if cfg.Scale == 0 {
			cfg.Scale = 1 / float64(2*target.Dim())
		}
	default:
		return nil, fmt.Errorf("%v: %w", cfg.Type, ErrConfiguration)
	}
	return &Evaluator{target: target, cfg: cfg, norm: target.FrobeniusSq(), stats: col}, nil
}

func (e *Evaluator) Target() qobj.Operator { return e.target }
func (e *Evaluator) Config() Config        { return e.cfg }

// Evaluate scores u against the target.
func (e *Evaluator) Evaluate(u qobj.Operator) (Result, error) {
	defer e.stats.Time(stats.PhaseFidelity)()

	if u.Dim() != e.target.Dim() {
		return Result{}, fmt.Errorf("evolution dim %d, target dim %d: %w", u.Dim(), e.target.Dim(), ErrConfiguration)
	}

	var err float64
	switch e.cfg.Type {
	case Unit:
		err = e.unitErr(u)
	case TraceDiff:
		err = e.cfg.Scale * u.Sub(e.target).FrobeniusSq()
	}
	if math.IsNaN(err) || math.IsInf(err, 0) {
		return Result{Err: err, Evolution: u}, ErrNumericalInstability
	}
	return Result{Err: err, Evolution: u}, nil
}

// unitErr evaluates 1 - Re(p̄·Tr(V†U))/d through the identity
//
//	2d·err = ‖U - pV‖² + (2d - ‖U‖² - ‖V‖²)
//
// The first term carries the signal near convergence. The second is the
// unitarity defect; below unitarityTol it is pure round-off and is dropped,
// which keeps small errors free of 1 - (1 - ε) cancellation.
func (e *Evaluator) unitErr(u qobj.Operator) float64 {
	d := float64(e.target.Dim())
	overlap := e.target.Inner(u)

	p := complex(1, 0)
	if e.cfg.Phase == PSU {
		if a := cmplx.Abs(overlap); a > 0 {
			p = overlap / complex(a, 0)
		}
	}

	num := u.AddScaled(-p, e.target).FrobeniusSq()
	if defect := 2*d - u.FrobeniusSq() - e.norm; math.Abs(defect) > unitarityTol*2*d {
		num += defect
	}
	err := num / (2 * d)
	if err < 0 {
		err = 0
	}
	return err
}

// Fidelity returns 1 - err for UNIT measures and the raw distance otherwise.
func (e *Evaluator) Fidelity(u qobj.Operator) (float64, error) {
	r, err := e.Evaluate(u)
	if err != nil {
		return 0, err
	}
	if e.cfg.Type == Unit {
		return 1 - r.Err, nil
	}
	return r.Err, nil
}
