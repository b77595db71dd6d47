// Package analysis inspects optimised control pulses.
//
// The main entry point is [PowerSpectrum], which zero-pads an amplitude
// column to a power of two and returns its one-sided spectrum:
//
//	spec, err := analysis.PowerSpectrum(amps.Column(0), evoTime/float64(nTS))
//	f, _ := spec.Dominant()
//
// For a CRAB pulse the dominant frequency is usually close to one of the
// basis frequencies the generator drew.
package analysis
