// Package stats accumulates timing and counters for an optimisation run.
//
// The collector is write-only from the point of view of the run: nothing in
// the optimiser branches on its values. A nil *Collector is valid and
// discards everything.
package stats

import (
	"time"
)

type Phase int

const (
	PhaseHamiltonian Phase = iota
	PhasePropagator
	PhaseForward
	PhaseOnward
	PhaseFidelity
	PhaseGradient
	numPhases
)

var phaseNames = [numPhases]string{
	"hamiltonian", "propagator", "forward", "onward", "fidelity", "gradient",
}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

type Counter int

const (
	Iterations Counter = iota
	FidFuncCalls
	FidComputed
	PropsComputed
	AmpUpdates
	AmpsChanged
	SimplexRestarts
	numCounters
)

var counterNames = [numCounters]string{
	"iterations", "fid_func_calls", "fid_computed", "props_computed",
	"amp_updates", "amps_changed", "simplex_restarts",
}

func (c Counter) String() string {
	if c < 0 || c >= numCounters {
		return "unknown"
	}
	return counterNames[c]
}

// Collector is not safe for concurrent use; callers time parallel sections
// from the goroutine that waits on them.
type Collector struct {
	start    time.Time
	end      time.Time
	phases   [numPhases]time.Duration
	counters [numCounters]int
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Start() {
	if c == nil {
		return
	}
	c.start = time.Now()
	c.end = time.Time{}
}

func (c *Collector) Stop() {
	if c == nil {
		return
	}
	c.end = time.Now()
}

func (c *Collector) Add(p Phase, d time.Duration) {
	if c == nil {
		return
	}
	c.phases[p] += d
}

// Time starts a stopwatch for p; call the returned func to record it.
//
//	defer c.Time(stats.PhaseFidelity)()
func (c *Collector) Time(p Phase) func() {
	if c == nil {
		return func() {}
	}
	t0 := time.Now()
	return func() { c.phases[p] += time.Since(t0) }
}

func (c *Collector) Inc(k Counter, n int) {
	if c == nil {
		return
	}
	c.counters[k] += n
}

func (c *Collector) Reset() {
	if c == nil {
		return
	}
	*c = Collector{}
}

// Snapshot freezes the current values.
func (c *Collector) Snapshot() Stats {
	if c == nil {
		return Stats{}
	}
	s := Stats{
		Phases:   c.phases,
		Counters: c.counters,
	}
	switch {
	case c.start.IsZero():
	case c.end.IsZero():
		s.WallTime = time.Since(c.start)
	default:
		s.WallTime = c.end.Sub(c.start)
	}
	return s
}

// Stats is an immutable copy of a collector.
type Stats struct {
	WallTime time.Duration
	Phases   [numPhases]time.Duration
	Counters [numCounters]int
}

func (s Stats) Phase(p Phase) time.Duration { return s.Phases[p] }
func (s Stats) Count(k Counter) int         { return s.Counters[k] }

// Values flattens the snapshot into name → value, durations in seconds.
func (s Stats) Values() map[string]float64 {
	out := make(map[string]float64, int(numPhases)+int(numCounters)+1)
	out["wall_time"] = s.WallTime.Seconds()
	for p := Phase(0); p < numPhases; p++ {
		out["time_"+p.String()] = s.Phases[p].Seconds()
	}
	for k := Counter(0); k < numCounters; k++ {
		out[k.String()] = float64(s.Counters[k])
	}
	return out
}
