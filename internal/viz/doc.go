// Package viz renders optimisation runs in the terminal.
//
//   - [RenderReport]: styled summary of an [optim.Result]
//   - [PlotAmplitudes], [PlotHistory], [PlotSpectrum]: asciigraph charts
//   - [WatchModel]: Bubble Tea view fed by the optimiser's observer
//
// # Key Bindings
//
//	T - Cycle color themes
//	Q - Leave the view (the run keeps going until its budget)
package viz
