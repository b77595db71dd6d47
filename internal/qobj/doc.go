// Package qobj provides the complex square operators the control core works on.
//
// An [Operator] is immutable: every algebraic method returns a fresh value, so
// operators can be shared between the model, the propagator cache and the
// result without copying.
//
//   - [Operator]: dense row-major complex matrix
//   - [Operator.Embed]: real 2d×2d embedding used by the gonum-backed solvers
//   - [Pauli], [Kron]: helpers for building qubit Hamiltonians
package qobj
