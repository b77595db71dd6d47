package qobj

import (
	"fmt"
	"strings"
)

var (
	PauliI = MustNew(2, []complex128{1, 0, 0, 1})
	PauliX = MustNew(2, []complex128{0, 1, 1, 0})
	PauliY = MustNew(2, []complex128{0, -1i, 1i, 0})
	PauliZ = MustNew(2, []complex128{1, 0, 0, -1})
)

// Kron returns the tensor product of the operators, left to right.
func Kron(ops ...Operator) Operator {
	if len(ops) == 0 {
		return Identity(1)
	}
	out := ops[0]
	for _, b := range ops[1:] {
		out = kron2(out, b)
	}
	return out
}

func kron2(a, b Operator) Operator {
	n, m := a.dim, b.dim
	r := Zero(n * m)
	dim := n * m
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			av := a.data[i*n+j]
			if av == 0 {
				continue
			}
			for k := 0; k < m; k++ {
				for l := 0; l < m; l++ {
					r.data[(i*m+k)*dim+j*m+l] = av * b.data[k*m+l]
				}
			}
		}
	}
	return r
}

// Pauli parses a Pauli string such as "XZI" into the corresponding tensor
// product. Labels are case-insensitive.
func Pauli(label string) (Operator, error) {
	if label == "" {
		return Operator{}, fmt.Errorf("empty pauli string: %w", ErrShape)
	}
	ops := make([]Operator, 0, len(label))
	for _, r := range strings.ToUpper(label) {
		switch r {
		case 'I':
			ops = append(ops, PauliI)
		case 'X':
			ops = append(ops, PauliX)
		case 'Y':
			ops = append(ops, PauliY)
		case 'Z':
			ops = append(ops, PauliZ)
		default:
			return Operator{}, fmt.Errorf("unknown pauli label %q in %q", r, label)
		}
	}
	return Kron(ops...), nil
}
