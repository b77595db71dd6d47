package config

import (
	"math"
	"sort"

	"github.com/san-kum/qctrl/internal/dynamics"
)

func op(re float64, ops ...string) Term { return Term{Re: re, Ops: ops} }

var Presets = map[string]func() *Config{
	"pi_pulse": PiPulse,
	"hadamard": Hadamard,
	"cnot":     CNOT,
}

// PiPulse is one qubit with no drift and a σx control, targeting σx.
func PiPulse() *Config {
	return &Config{
		Name:     "pi_pulse",
		Controls: []OperatorSpec{{op(1, "X")}},
		Target:   OperatorSpec{op(1, "X")},
		NumTS:    DefaultNumTS,
		EvoTime:  DefaultEvoTime,
		Optim:    defaultOptim(),
	}
}

// Hadamard drives a σz-drifting qubit through σx into a Hadamard gate.
func Hadamard() *Config {
	s := 1 / math.Sqrt2
	cfg := &Config{
		Name:     "hadamard",
		Drift:    OperatorSpec{op(1, "Z")},
		Controls: []OperatorSpec{{op(1, "X")}},
		Target:   OperatorSpec{op(s, "X"), op(s, "Z")},
		NumTS:    100,
		EvoTime:  10,
		Optim:    defaultOptim(),
	}
	cfg.Optim.FidErrTarg = 1e-3
	return cfg
}

// CNOT synthesises a controlled-NOT on two qubits from local x/y drives and
// a ZZ coupling.
func CNOT() *Config {
	cfg := &Config{
		Name: "cnot",
		Controls: []OperatorSpec{
			{op(1, "X", "I")},
			{op(1, "Y", "I")},
			{op(1, "I", "X")},
			{op(1, "I", "Y")},
			{op(1, "Z", "Z")},
		},
		Target: OperatorSpec{
			op(0.5, "I", "I"),
			op(0.5, "Z", "I"),
			op(0.5, "I", "X"),
			op(-0.5, "Z", "X"),
		},
		NumTS:   40,
		EvoTime: 2 * math.Pi,
		Optim:   defaultOptim(),
	}
	cfg.Optim.FidErrTarg = 1e-3
	cfg.Optim.PropType = dynamics.PropFrechet
	return cfg
}

func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
