package qobj

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Embed returns the real 2d×2d matrix [[Re, -Im], [Im, Re]].
//
// The map is an algebra homomorphism, so exp, products and spectral functions
// of the embedding are embeddings of the complex results. A Hermitian operator
// embeds to a real symmetric matrix.
func (o Operator) Embed() *mat.Dense {
	n := o.dim
	m := mat.NewDense(2*n, 2*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := o.data[i*n+j]
			m.Set(i, j, real(v))
			m.Set(i, j+n, -imag(v))
			m.Set(i+n, j, imag(v))
			m.Set(i+n, j+n, real(v))
		}
	}
	return m
}

// EmbedSym is Embed for Hermitian operators, returning the symmetric form.
// Only the upper triangle is read, so tiny anti-Hermitian noise is discarded.
func (o Operator) EmbedSym() *mat.SymDense {
	n := o.dim
	s := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := o.data[i*n+j]
			s.SetSym(i, j, real(v))
			s.SetSym(i+n, j+n, real(v))
			s.SetSym(i, j+n, -imag(v))
			s.SetSym(j, i+n, imag(v))
		}
	}
	return s
}

// FromEmbedding reads a complex operator back from the left block column of
// a real embedding.
func FromEmbedding(m mat.Matrix) (Operator, error) {
	r, c := m.Dims()
	if r != c || r%2 != 0 {
		return Operator{}, fmt.Errorf("embedding %dx%d: %w", r, c, ErrShape)
	}
	n := r / 2
	op := Zero(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			op.data[i*n+j] = complex(m.At(i, j), m.At(i+n, j))
		}
	}
	return op, nil
}
