package qobj

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strings"
)

var (
	// ErrShape indicates a data slice that does not describe a square matrix.
	ErrShape = errors.New("qobj: invalid operator shape")

	// ErrDimensionMismatch indicates operands of different dimension.
	ErrDimensionMismatch = errors.New("qobj: operator dimension mismatch")
)

type Operator struct {
	dim  int
	data []complex128
}

// New builds a dim×dim operator from row-major data. The slice is copied.
func New(dim int, data []complex128) (Operator, error) {
	if dim <= 0 {
		return Operator{}, fmt.Errorf("dim %d: %w", dim, ErrShape)
	}
	if len(data) != dim*dim {
		return Operator{}, fmt.Errorf("%d entries for dim %d: %w", len(data), dim, ErrShape)
	}
	c := make([]complex128, len(data))
	copy(c, data)
	return Operator{dim: dim, data: c}, nil
}

// FromRows builds an operator from a square table of rows.
func FromRows(rows [][]complex128) (Operator, error) {
	n := len(rows)
	data := make([]complex128, 0, n*n)
	for i, r := range rows {
		if len(r) != n {
			return Operator{}, fmt.Errorf("row %d has %d entries, want %d: %w", i, len(r), n, ErrShape)
		}
		data = append(data, r...)
	}
	return New(n, data)
}

// MustNew is New that panics on error. Intended for literals.
func MustNew(dim int, data []complex128) Operator {
	op, err := New(dim, data)
	if err != nil {
		panic(err)
	}
	return op
}

func Zero(dim int) Operator {
	return Operator{dim: dim, data: make([]complex128, dim*dim)}
}

func Identity(dim int) Operator {
	op := Zero(dim)
	for i := 0; i < dim; i++ {
		op.data[i*dim+i] = 1
	}
	return op
}

func (o Operator) Dim() int      { return o.dim }
func (o Operator) IsEmpty() bool { return o.dim == 0 }

func (o Operator) At(i, j int) complex128 {
	return o.data[i*o.dim+j]
}

// Data returns a row-major copy of the entries.
func (o Operator) Data() []complex128 {
	c := make([]complex128, len(o.data))
	copy(c, o.data)
	return c
}

func (o Operator) mustMatch(b Operator) {
	if o.dim != b.dim {
		panic(fmt.Errorf("%d vs %d: %w", o.dim, b.dim, ErrDimensionMismatch))
	}
}

func (o Operator) Add(b Operator) Operator {
	o.mustMatch(b)
	r := Zero(o.dim)
	for i := range o.data {
		r.data[i] = o.data[i] + b.data[i]
	}
	return r
}

func (o Operator) Sub(b Operator) Operator {
	o.mustMatch(b)
	r := Zero(o.dim)
	for i := range o.data {
		r.data[i] = o.data[i] - b.data[i]
	}
	return r
}

func (o Operator) Scale(c complex128) Operator {
	r := Zero(o.dim)
	for i, v := range o.data {
		r.data[i] = c * v
	}
	return r
}

// AddScaled returns o + c*b.
func (o Operator) AddScaled(c complex128, b Operator) Operator {
	o.mustMatch(b)
	r := Zero(o.dim)
	for i := range o.data {
		r.data[i] = o.data[i] + c*b.data[i]
	}
	return r
}

// Mul returns the matrix product o·b.
func (o Operator) Mul(b Operator) Operator {
	o.mustMatch(b)
	n := o.dim
	r := Zero(n)
	for i := 0; i < n; i++ {
		row := o.data[i*n : (i+1)*n]
		out := r.data[i*n : (i+1)*n]
		for k, a := range row {
			if a == 0 {
				continue
			}
			bk := b.data[k*n : (k+1)*n]
			for j, v := range bk {
				out[j] += a * v
			}
		}
	}
	return r
}

// Dagger returns the conjugate transpose.
func (o Operator) Dagger() Operator {
	n := o.dim
	r := Zero(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			r.data[j*n+i] = cmplx.Conj(o.data[i*n+j])
		}
	}
	return r
}

func (o Operator) Trace() complex128 {
	var t complex128
	for i := 0; i < o.dim; i++ {
		t += o.data[i*o.dim+i]
	}
	return t
}

// Inner returns the Hilbert-Schmidt product Tr(o† b) without forming o†b.
func (o Operator) Inner(b Operator) complex128 {
	o.mustMatch(b)
	var s complex128
	for i, v := range o.data {
		s += cmplx.Conj(v) * b.data[i]
	}
	return s
}

// FrobeniusSq returns Σ|o_ij|².
func (o Operator) FrobeniusSq() float64 {
	s := 0.0
	for _, v := range o.data {
		s += real(v)*real(v) + imag(v)*imag(v)
	}
	return s
}

func (o Operator) IsFinite() bool {
	for _, v := range o.data {
		if math.IsNaN(real(v)) || math.IsNaN(imag(v)) || math.IsInf(real(v), 0) || math.IsInf(imag(v), 0) {
			return false
		}
	}
	return true
}

func (o Operator) IsHermitian(tol float64) bool {
	n := o.dim
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if cmplx.Abs(o.data[i*n+j]-cmplx.Conj(o.data[j*n+i])) > tol {
				return false
			}
		}
	}
	return true
}

func (o Operator) IsUnitary(tol float64) bool {
	return o.Dagger().Mul(o).ApproxEqual(Identity(o.dim), tol)
}

// Equal reports exact entrywise equality.
func (o Operator) Equal(b Operator) bool {
	if o.dim != b.dim {
		return false
	}
	for i := range o.data {
		if o.data[i] != b.data[i] {
			return false
		}
	}
	return true
}

// ApproxEqual reports whether every entry differs by at most tol.
func (o Operator) ApproxEqual(b Operator, tol float64) bool {
	if o.dim != b.dim {
		return false
	}
	for i := range o.data {
		if cmplx.Abs(o.data[i]-b.data[i]) > tol {
			return false
		}
	}
	return true
}

func (o Operator) String() string {
	var sb strings.Builder
	for i := 0; i < o.dim; i++ {
		sb.WriteString("[")
		for j := 0; j < o.dim; j++ {
			if j > 0 {
				sb.WriteString(" ")
			}
			v := o.data[i*o.dim+j]
			fmt.Fprintf(&sb, "%.4f%+.4fi", real(v), imag(v))
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}
