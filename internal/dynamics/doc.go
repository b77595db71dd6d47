// Package dynamics provides the time-sliced propagation engine.
//
// The engine evolves a closed quantum system under piecewise-constant
// controls:
//
//   - [Model]: drift, control and start operators
//   - [TimeGrid]: slot durations summing to the evolution time
//   - [Amplitudes]: n_ts × n_ctrls control table
//   - [PropType]: DIAG or FRECHET propagator strategy
//   - [Engine]: cached per-slot propagators and their ordered products
//
// # Example
//
//	model, _ := dynamics.NewModel(drift, []qobj.Operator{qobj.PauliX}, qobj.Operator{})
//	grid, _ := dynamics.NewUniformGrid(50, math.Pi)
//	eng, _ := dynamics.NewEngine(model, grid, dynamics.PropDiag)
//	_, _ = eng.SetAmplitudes(amps)
//	u, _ := eng.Evolution()
//
// # Thread Safety
//
// Engine instances are NOT thread-safe. Dirty slots are recomputed on
// internal goroutines, but callers must drive an engine from one goroutine.
// Concurrent runs need independent engines.
package dynamics
