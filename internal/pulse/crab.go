package pulse

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"

	"github.com/san-kum/qctrl/internal/dynamics"
)

// GuessAction selects how the CRAB sum combines with the guess pulse.
type GuessAction int

const (
	// GuessAdd gives guess + crab.
	GuessAdd GuessAction = iota
	// GuessModulate gives guess * (1 + crab).
	GuessModulate
)

func (a GuessAction) String() string {
	switch a {
	case GuessAdd:
		return "ADD"
	case GuessModulate:
		return "MODULATE"
	default:
		return fmt.Sprintf("GuessAction(%d)", int(a))
	}
}

func ParseGuessAction(s string) (GuessAction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADD", "":
		return GuessAdd, nil
	case "MODULATE":
		return GuessModulate, nil
	default:
		return 0, fmt.Errorf("unknown guess action %q: %w", s, ErrConfiguration)
	}
}

func (a GuessAction) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *GuessAction) UnmarshalText(b []byte) error {
	v, err := ParseGuessAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// paramsPerBasis is amplitude, frequency offset, phase.
const paramsPerBasis = 3

const DefaultInitScale = 1.0

// CRAB is a chopped random basis pulse for one control:
//
//	u(t) = bound(ramp(t) * combine(guess(t), scaling * Σ_k a_k sin(2π (f_k + δ_k) t + φ_k)))
//
// Params are laid out as (a_k, δ_k, φ_k) per basis function. The base
// frequencies f_k are drawn once from a seed derived from the grid, the
// control index and the user seed, so identical configurations reproduce.
type CRAB struct {
	starts  []float64
	evoTime float64
	ctrl    int

	seed        int64
	numBasis    int
	initScale   float64
	scaling     float64
	guess       []float64
	guessAction GuessAction
	ramping     []float64
	bounds      Bounds

	freqs  []float64
	init   []float64
	locked bool
}

// NewCRAB builds a generator for control ctrl of a system with Hilbert
// dimension dim. The basis count defaults to max(2, dim-1).
func NewCRAB(g dynamics.TimeGrid, dim, ctrl int) (*CRAB, error) {
	if g.NumSlots() < 1 || !(g.EvoTime() > 0) {
		return nil, fmt.Errorf("empty time grid: %w", ErrConfiguration)
	}
	if dim < 1 {
		return nil, fmt.Errorf("dimension %d: %w", dim, ErrConfiguration)
	}
	if ctrl < 0 {
		return nil, fmt.Errorf("control index %d: %w", ctrl, ErrConfiguration)
	}
	c := &CRAB{
		starts:    g.Starts(),
		evoTime:   g.EvoTime(),
		ctrl:      ctrl,
		numBasis:  max(2, dim-1),
		initScale: DefaultInitScale,
		scaling:   1,
		bounds:    Unbounded(),
	}
	c.draw()
	return c, nil
}

func (c *CRAB) Kind() Kind       { return Crab }
func (c *CRAB) NumParams() int   { return paramsPerBasis * c.numBasis }
func (c *CRAB) NumBasis() int    { return c.numBasis }
func (c *CRAB) Scaling() float64 { return c.scaling }
func (c *CRAB) Bounds() Bounds   { return c.bounds }
func (c *CRAB) Guess() []float64 { return append([]float64(nil), c.guess...) }
func (c *CRAB) Locked() bool     { return c.locked }

// Frequencies returns the base frequencies f_k.
func (c *CRAB) Frequencies() []float64 {
	out := make([]float64, len(c.freqs))
	copy(out, c.freqs)
	return out
}

// Init returns the initial coefficients: random amplitudes in
// [-initScale, initScale], zero frequency offsets and phases.
func (c *CRAB) Init() []float64 {
	out := make([]float64, len(c.init))
	copy(out, c.init)
	return out
}

// Lock freezes the configuration. Setters return ErrLocked afterwards.
func (c *CRAB) Lock() { c.locked = true }

func (c *CRAB) SetGuess(guess []float64) error {
	if c.locked {
		return ErrLocked
	}
	if guess == nil {
		c.guess = nil
		return nil
	}
	if err := checkSeries("guess", guess, len(c.starts)); err != nil {
		return err
	}
	c.guess = append([]float64(nil), guess...)
	return nil
}

func (c *CRAB) SetGuessAction(a GuessAction) error {
	if c.locked {
		return ErrLocked
	}
	if a != GuessAdd && a != GuessModulate {
		return fmt.Errorf("%v: %w", a, ErrConfiguration)
	}
	c.guessAction = a
	return nil
}

// SetRamping installs an envelope multiplied onto the combined pulse.
func (c *CRAB) SetRamping(ramp []float64) error {
	if c.locked {
		return ErrLocked
	}
	if ramp == nil {
		c.ramping = nil
		return nil
	}
	if err := checkSeries("ramping", ramp, len(c.starts)); err != nil {
		return err
	}
	c.ramping = append([]float64(nil), ramp...)
	return nil
}

// SetScaling sets the factor applied to the basis sum. Zero freezes the
// control to its guess and ramping; its coefficients stay in the search.
func (c *CRAB) SetScaling(s float64) error {
	if c.locked {
		return ErrLocked
	}
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return fmt.Errorf("scaling %g: %w", s, ErrConfiguration)
	}
	c.scaling = s
	return nil
}

func (c *CRAB) SetBounds(lower, upper float64) error {
	if c.locked {
		return ErrLocked
	}
	b, err := NewBounds(lower, upper)
	if err != nil {
		return err
	}
	b.Soft = c.bounds.Soft
	c.bounds = b
	return nil
}

// SetSoftBounds switches between clipping and tanh squashing.
func (c *CRAB) SetSoftBounds(soft bool) error {
	if c.locked {
		return ErrLocked
	}
	c.bounds.Soft = soft
	return nil
}

func (c *CRAB) SetNumBasis(n int) error {
	if c.locked {
		return ErrLocked
	}
	if n < 1 {
		return fmt.Errorf("basis count %d: %w", n, ErrConfiguration)
	}
	c.numBasis = n
	c.draw()
	return nil
}

func (c *CRAB) SetSeed(seed int64) error {
	if c.locked {
		return ErrLocked
	}
	c.seed = seed
	c.draw()
	return nil
}

func (c *CRAB) SetInitScale(s float64) error {
	if c.locked {
		return ErrLocked
	}
	if s < 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return fmt.Errorf("init scale %g: %w", s, ErrConfiguration)
	}
	c.initScale = s
	c.draw()
	return nil
}

func (c *CRAB) Generate(params []float64) ([]float64, error) {
	if len(params) != c.NumParams() {
		return nil, fmt.Errorf("CRAB control %d: got %d params, want %d: %w", c.ctrl, len(params), c.NumParams(), ErrConfiguration)
	}

	out := make([]float64, len(c.starts))
	for i, t := range c.starts {
		var v float64
		if c.scaling != 0 {
			var sum float64
			for k := 0; k < c.numBasis; k++ {
				a, df, ph := params[paramsPerBasis*k], params[paramsPerBasis*k+1], params[paramsPerBasis*k+2]
				sum += a * math.Sin(2*math.Pi*(c.freqs[k]+df)*t+ph)
			}
			v = c.scaling * sum
		}

		if c.guess != nil {
			switch c.guessAction {
			case GuessAdd:
				v = c.guess[i] + v
			case GuessModulate:
				v = c.guess[i] * (1 + v)
			}
		}
		if c.ramping != nil {
			v *= c.ramping[i]
		}
		out[i] = v
	}
	c.bounds.applyAll(out)
	return out, nil
}

// draw derives the base frequencies and the initial coefficients from one
// seeded source: f_k = k (1 + r_k) / T with r_k in [-0.5, 0.5).
func (c *CRAB) draw() {
	rng := rand.New(rand.NewSource(c.sourceSeed()))

	c.freqs = make([]float64, c.numBasis)
	for k := range c.freqs {
		r := rng.Float64() - 0.5
		c.freqs[k] = float64(k+1) * (1 + r) / c.evoTime
	}

	c.init = make([]float64, c.NumParams())
	for k := 0; k < c.numBasis; k++ {
		c.init[paramsPerBasis*k] = c.initScale * (2*rng.Float64() - 1)
	}
}

func (c *CRAB) sourceSeed() int64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, v := range []uint64{
		math.Float64bits(c.evoTime),
		uint64(len(c.starts)),
		uint64(c.ctrl),
		uint64(c.seed),
	} {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	return int64(h.Sum64())
}
