package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/san-kum/qctrl/internal/dynamics"
	"github.com/san-kum/qctrl/internal/fidelity"
	"github.com/san-kum/qctrl/internal/optim"
	"github.com/san-kum/qctrl/internal/pulse"
	"github.com/san-kum/qctrl/internal/qobj"
	"gopkg.in/yaml.v3"
)

const (
	DefaultNumTS       = 50
	DefaultEvoTime     = math.Pi
	DefaultFidErrTarg  = 1e-4
	DefaultMaxIter     = 5000
	DefaultMaxWallTime = 180.0
)

var ErrInvalid = errors.New("config: invalid problem")

type Config struct {
	Name     string         `yaml:"name"`
	Drift    OperatorSpec   `yaml:"drift"`
	Controls []OperatorSpec `yaml:"controls"`
	Start    OperatorSpec   `yaml:"start,omitempty"`
	Target   OperatorSpec   `yaml:"target"`
	NumTS    int            `yaml:"n_ts"`
	EvoTime  float64        `yaml:"evo_time"`
	Seed     int64          `yaml:"seed"`
	Optim    OptimConfig    `yaml:"optim"`
	Pulses   []PulseConfig  `yaml:"pulses,omitempty"`
}

// Term is one coefficient times a tensor product of Pauli factors,
// e.g. {re: 0.5, ops: [Z, Z]}.
type Term struct {
	Re  float64  `yaml:"re"`
	Im  float64  `yaml:"im,omitempty"`
	Ops []string `yaml:"ops,flow"`
}

// OperatorSpec is a sum of Pauli terms. Empty means zero (or identity for
// the start operator).
type OperatorSpec []Term

type OptimConfig struct {
	FidErrTarg  float64              `yaml:"fid_err_targ"`
	MaxIter     int                  `yaml:"max_iter"`
	MaxWallTime float64              `yaml:"max_wall_time"`
	PropType    dynamics.PropType    `yaml:"prop_type"`
	FidType     fidelity.Type        `yaml:"fid_type"`
	PhaseOption fidelity.PhaseOption `yaml:"phase_option"`
	Workers     int                  `yaml:"workers,omitempty"`
	InitialStep float64              `yaml:"initial_step,omitempty"`
}

// ShapeConfig describes a fixed shape used as a guess, a ramping envelope or
// a frozen control.
type ShapeConfig struct {
	Type      string   `yaml:"type"`
	Scaling   *float64 `yaml:"scaling,omitempty"`
	Offset    float64  `yaml:"offset,omitempty"`
	Start     float64  `yaml:"start,omitempty"`
	End       *float64 `yaml:"end,omitempty"`
	NumWaves  float64  `yaml:"num_waves,omitempty"`
	DecayTime float64  `yaml:"decay_time,omitempty"`
	Seed      int64    `yaml:"seed,omitempty"`
}

// PulseConfig configures the generator of one control. Type defaults to CRAB.
type PulseConfig struct {
	ShapeConfig `yaml:",inline"`

	LBound      *float64     `yaml:"lbound,omitempty"`
	UBound      *float64     `yaml:"ubound,omitempty"`
	SoftBounds  bool         `yaml:"soft_bounds,omitempty"`
	NumBasis    int          `yaml:"num_basis,omitempty"`
	InitScale   *float64     `yaml:"init_scale,omitempty"`
	Guess       *ShapeConfig `yaml:"guess,omitempty"`
	GuessAction string       `yaml:"guess_action,omitempty"`
	Ramping     *ShapeConfig `yaml:"ramping,omitempty"`
}

func DefaultConfig() *Config {
	return PiPulse()
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		NumTS:   DefaultNumTS,
		EvoTime: DefaultEvoTime,
		Optim:   defaultOptim(),
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func defaultOptim() OptimConfig {
	return OptimConfig{
		FidErrTarg:  DefaultFidErrTarg,
		MaxIter:     DefaultMaxIter,
		MaxWallTime: DefaultMaxWallTime,
		PropType:    dynamics.PropDiag,
		FidType:     fidelity.Unit,
		PhaseOption: fidelity.PSU,
	}
}

// WithGrid returns a copy using a different time grid.
func (c *Config) WithGrid(nTS int, evoTime float64) *Config {
	cp := *c
	cp.NumTS = nTS
	cp.EvoTime = evoTime
	return &cp
}

func (s OperatorSpec) Dim() int {
	if len(s) == 0 {
		return 0
	}
	return 1 << len(s[0].Ops)
}

// Build sums the terms. dim is only used for an empty spec.
func (s OperatorSpec) Build(dim int) (qobj.Operator, error) {
	if len(s) == 0 {
		return qobj.Zero(dim), nil
	}
	n := len(s[0].Ops)
	if n == 0 {
		return qobj.Operator{}, fmt.Errorf("term without ops: %w", ErrInvalid)
	}
	sum := qobj.Zero(1 << n)
	for i, t := range s {
		if len(t.Ops) != n {
			return qobj.Operator{}, fmt.Errorf("term %d acts on %d qubits, want %d: %w", i, len(t.Ops), n, ErrInvalid)
		}
		for _, f := range t.Ops {
			if len(f) != 1 {
				return qobj.Operator{}, fmt.Errorf("term %d: factor %q is not a single Pauli label: %w", i, f, ErrInvalid)
			}
		}
		op, err := qobj.Pauli(strings.Join(t.Ops, ""))
		if err != nil {
			return qobj.Operator{}, fmt.Errorf("term %d: %w: %w", i, ErrInvalid, err)
		}
		sum = sum.AddScaled(complex(t.Re, t.Im), op)
	}
	return sum, nil
}

// Problem is a fully built optimisation problem.
type Problem struct {
	Model   *dynamics.Model
	Target  qobj.Operator
	Grid    dynamics.TimeGrid
	Gens    []pulse.Generator
	Options optim.Options
}

func (c *Config) Build() (*Problem, error) {
	dim := c.Target.Dim()
	if dim == 0 {
		return nil, fmt.Errorf("empty target: %w", ErrInvalid)
	}
	if len(c.Controls) == 0 {
		return nil, fmt.Errorf("no control operators: %w", ErrInvalid)
	}
	if len(c.Pulses) > len(c.Controls) {
		return nil, fmt.Errorf("%d pulses for %d controls: %w", len(c.Pulses), len(c.Controls), ErrInvalid)
	}

	target, err := c.Target.Build(dim)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	drift, err := c.Drift.Build(dim)
	if err != nil {
		return nil, fmt.Errorf("drift: %w", err)
	}
	ctrls := make([]qobj.Operator, len(c.Controls))
	for i, spec := range c.Controls {
		if ctrls[i], err = spec.Build(dim); err != nil {
			return nil, fmt.Errorf("control %d: %w", i, err)
		}
	}
	start := qobj.Operator{}
	if len(c.Start) > 0 {
		if start, err = c.Start.Build(dim); err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
	}

	model, err := dynamics.NewModel(drift, ctrls, start)
	if err != nil {
		return nil, err
	}
	grid, err := dynamics.NewUniformGrid(c.NumTS, c.EvoTime)
	if err != nil {
		return nil, err
	}

	gens := make([]pulse.Generator, len(ctrls))
	for i := range gens {
		pc := PulseConfig{}
		if i < len(c.Pulses) {
			pc = c.Pulses[i]
		}
		if gens[i], err = pc.build(grid, dim, i, c.Seed); err != nil {
			return nil, fmt.Errorf("pulse %d: %w", i, err)
		}
	}

	return &Problem{
		Model:   model,
		Target:  target,
		Grid:    grid,
		Gens:    gens,
		Options: c.Optim.options(),
	}, nil
}

func (p *Problem) Optimizer() (*optim.Optimizer, error) {
	return optim.New(p.Model, p.Target, p.Grid, p.Gens, p.Options)
}

func (o OptimConfig) options() optim.Options {
	opts := optim.DefaultOptions()
	if o.FidErrTarg != 0 {
		opts.FidErrTarg = o.FidErrTarg
	}
	if o.MaxIter != 0 {
		opts.MaxIter = o.MaxIter
	}
	if o.MaxWallTime != 0 {
		opts.MaxWallTime = time.Duration(o.MaxWallTime * float64(time.Second))
	}
	if o.Workers != 0 {
		opts.Workers = o.Workers
	}
	if o.InitialStep != 0 {
		opts.InitialStep = o.InitialStep
	}
	opts.PropType = o.PropType
	opts.FidType = o.FidType
	opts.PhaseOption = o.PhaseOption
	return opts
}

func (s ShapeConfig) options() (pulse.Kind, pulse.ShapeOptions, error) {
	opts := pulse.DefaultShapeOptions()
	kind, err := pulse.ParseKind(s.Type)
	if err != nil {
		return kind, opts, err
	}
	if s.Scaling != nil {
		opts.Scaling = *s.Scaling
	}
	if s.End != nil {
		opts.End = *s.End
	}
	if s.NumWaves != 0 {
		opts.NumWaves = s.NumWaves
	}
	opts.Offset = s.Offset
	opts.Start = s.Start
	opts.DecayTime = s.DecayTime
	opts.Seed = s.Seed
	return kind, opts, nil
}

func (s ShapeConfig) build(g dynamics.TimeGrid) (*pulse.Shape, error) {
	kind, opts, err := s.options()
	if err != nil {
		return nil, err
	}
	return pulse.NewShape(kind, g, opts)
}

func (pc PulseConfig) build(g dynamics.TimeGrid, dim, ctrl int, seed int64) (pulse.Generator, error) {
	kind := pulse.Crab
	if pc.Type != "" {
		k, err := pulse.ParseKind(pc.Type)
		if err != nil {
			return nil, err
		}
		kind = k
	}

	lo, hi := math.Inf(-1), math.Inf(1)
	if pc.LBound != nil {
		lo = *pc.LBound
	}
	if pc.UBound != nil {
		hi = *pc.UBound
	}
	bounds, err := pulse.NewBounds(lo, hi)
	if err != nil {
		return nil, err
	}
	bounds.Soft = pc.SoftBounds

	if kind != pulse.Crab {
		sc := pc.ShapeConfig
		sc.Type = kind.String()
		_, opts, err := sc.options()
		if err != nil {
			return nil, err
		}
		opts.Bounds = bounds
		return pulse.NewShape(kind, g, opts)
	}

	c, err := pulse.NewCRAB(g, dim, ctrl)
	if err != nil {
		return nil, err
	}
	steps := []func() error{
		func() error { return c.SetSeed(seed) },
		func() error { return c.SetBounds(bounds.Lower, bounds.Upper) },
		func() error { return c.SetSoftBounds(bounds.Soft) },
	}
	if pc.Scaling != nil {
		steps = append(steps, func() error { return c.SetScaling(*pc.Scaling) })
	}
	if pc.NumBasis != 0 {
		steps = append(steps, func() error { return c.SetNumBasis(pc.NumBasis) })
	}
	if pc.InitScale != nil {
		steps = append(steps, func() error { return c.SetInitScale(*pc.InitScale) })
	}
	if pc.GuessAction != "" {
		steps = append(steps, func() error {
			a, err := pulse.ParseGuessAction(pc.GuessAction)
			if err != nil {
				return err
			}
			return c.SetGuessAction(a)
		})
	}
	if pc.Guess != nil {
		steps = append(steps, func() error {
			s, err := pc.Guess.build(g)
			if err != nil {
				return err
			}
			return c.SetGuess(s.Samples())
		})
	}
	if pc.Ramping != nil {
		steps = append(steps, func() error {
			s, err := pc.Ramping.build(g)
			if err != nil {
				return err
			}
			return c.SetRamping(s.Samples())
		})
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return c, nil
}
