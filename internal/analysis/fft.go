package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
)

var (
	ErrEmpty   = errors.New("analysis: empty sequence")
	ErrSpacing = errors.New("analysis: sample spacing must be positive and finite")
)

// NextPow2 returns the smallest power of two that is at least n.
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Spectrum is a one-sided power spectrum. Freqs are in cycles per unit time.
type Spectrum struct {
	Freqs []float64
	Power []float64
}

// PowerSpectrum returns |X_k|²/N of the mean-removed samples, zero-padded
// to the next power of two. dt is the spacing between samples.
func PowerSpectrum(samples []float64, dt float64) (Spectrum, error) {
	if len(samples) == 0 {
		return Spectrum{}, ErrEmpty
	}
	if !(dt > 0) || math.IsInf(dt, 0) {
		return Spectrum{}, ErrSpacing
	}

	n := NextPow2(len(samples))
	seq := make([]float64, n)
	copy(seq, samples)
	mean := floats.Sum(samples) / float64(len(samples))
	for i := range samples {
		seq[i] -= mean
	}

	coeffs := fft.FFTReal(seq)

	bins := n/2 + 1
	spec := Spectrum{
		Freqs: make([]float64, bins),
		Power: make([]float64, bins),
	}
	for k := 0; k < bins; k++ {
		a := cmplx.Abs(coeffs[k])
		spec.Freqs[k] = float64(k) / (float64(n) * dt)
		spec.Power[k] = a * a / float64(n)
	}
	return spec, nil
}

// Dominant returns the frequency of the strongest non-DC bin. A flat
// spectrum reports 0.
func (s Spectrum) Dominant() (freq, power float64) {
	if len(s.Power) < 2 {
		return 0, 0
	}
	k := floats.MaxIdx(s.Power[1:]) + 1
	if s.Power[k] == 0 {
		return 0, 0
	}
	return s.Freqs[k], s.Power[k]
}

// Total is the summed power over every bin.
func (s Spectrum) Total() float64 {
	return floats.Sum(s.Power)
}
