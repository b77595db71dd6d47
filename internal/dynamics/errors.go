package dynamics

import (
	"errors"
	"fmt"
)

// Domain errors for propagation.
var (
	// ErrConfiguration indicates an invalid model, grid or amplitude table.
	ErrConfiguration = errors.New("dynamics: invalid configuration")

	// ErrNumericalInstability indicates a non-finite generator or propagator.
	ErrNumericalInstability = errors.New("dynamics: numerical instability (NaN or Inf detected)")

	// ErrEigenFailed indicates the symmetric eigensolver did not converge.
	ErrEigenFailed = errors.New("dynamics: eigendecomposition failed")

	// ErrSlotRange indicates a slot index outside the time grid.
	ErrSlotRange = errors.New("dynamics: slot index out of range")
)

// SlotError wraps an error with the time slot it occurred in.
type SlotError struct {
	Slot    int
	Wrapped error
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("slot %d: %v", e.Slot, e.Wrapped)
}

func (e *SlotError) Unwrap() error {
	return e.Wrapped
}
