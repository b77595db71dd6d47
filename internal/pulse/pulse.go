// Package pulse turns small parameter vectors into per-slot control
// amplitudes.
//
// Fixed shapes (LIN, GAUSSIAN_EDGE, TRIANGLE and friends) take no
// parameters and are typically used as guess pulses, ramping envelopes or
// frozen controls. CRAB generators expose their basis coefficients to the
// optimiser as a flat vector.
package pulse

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrConfiguration = errors.New("pulse: invalid configuration")
	ErrLocked        = errors.New("pulse: generator is locked by a running optimisation")
)

type Kind int

const (
	Zero Kind = iota
	Rnd
	Lin
	Sine
	Square
	Saw
	Triangle
	GaussianEdge
	Crab
)

var kindNames = [...]string{
	Zero:         "ZERO",
	Rnd:          "RND",
	Lin:          "LIN",
	Sine:         "SINE",
	Square:       "SQUARE",
	Saw:          "SAW",
	Triangle:     "TRIANGLE",
	GaussianEdge: "GAUSSIAN_EDGE",
	Crab:         "CRAB",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown pulse type %q: %w", s, ErrConfiguration)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Generator produces one control's amplitude sequence, one value per slot.
// Generate must be pure: the same params always give the same samples.
type Generator interface {
	Kind() Kind
	NumParams() int
	Init() []float64
	Generate(params []float64) ([]float64, error)
}

// Lockable generators refuse reconfiguration once an optimisation owns them.
type Lockable interface {
	Lock()
}

// Bounds limits samples to [Lower, Upper]. Either side may be infinite.
// Soft bounding squashes through tanh instead of clipping and needs both
// sides finite; otherwise it falls back to clipping.
type Bounds struct {
	Lower float64
	Upper float64
	Soft  bool
}

func Unbounded() Bounds {
	return Bounds{Lower: math.Inf(-1), Upper: math.Inf(1)}
}

func NewBounds(lower, upper float64) (Bounds, error) {
	if math.IsNaN(lower) || math.IsNaN(upper) {
		return Bounds{}, fmt.Errorf("NaN bound: %w", ErrConfiguration)
	}
	if lower > upper {
		return Bounds{}, fmt.Errorf("lbound %g > ubound %g: %w", lower, upper, ErrConfiguration)
	}
	return Bounds{Lower: lower, Upper: upper}, nil
}

func (b Bounds) IsSet() bool {
	return !math.IsInf(b.Lower, -1) || !math.IsInf(b.Upper, 1)
}

// Apply maps v into the bounds. NaN passes through unchanged.
func (b Bounds) Apply(v float64) float64 {
	if math.IsNaN(v) || !b.IsSet() {
		return v
	}
	if b.Soft && !math.IsInf(b.Lower, 0) && !math.IsInf(b.Upper, 0) {
		mid := (b.Lower + b.Upper) / 2
		half := (b.Upper - b.Lower) / 2
		if half == 0 {
			return mid
		}
		v = mid + half*math.Tanh((v-mid)/half)
	}
	return math.Max(b.Lower, math.Min(b.Upper, v))
}

func (b Bounds) applyAll(samples []float64) {
	if !b.IsSet() {
		return
	}
	for i, v := range samples {
		samples[i] = b.Apply(v)
	}
}

// checkSeries validates a guess or ramping array against the slot count.
func checkSeries(name string, s []float64, nTS int) error {
	if len(s) != nTS {
		return fmt.Errorf("%s has %d samples, want %d: %w", name, len(s), nTS, ErrConfiguration)
	}
	for i, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s[%d] is not finite: %w", name, i, ErrConfiguration)
		}
	}
	return nil
}
