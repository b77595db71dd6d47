package dynamics

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/qctrl/internal/qobj"
	"gonum.org/v1/gonum/mat"
)

// PropType selects how per-slot propagators exp(-i H_t Δt) are computed.
type PropType int

const (
	// PropDiag eigendecomposes the Hermitian generator and exponentiates the
	// spectrum. The eigensystem is kept per slot.
	PropDiag PropType = iota
	// PropFrechet exponentiates directly by Padé scaling and squaring. Works
	// for non-normal generators.
	PropFrechet
)

func (p PropType) String() string {
	switch p {
	case PropDiag:
		return "DIAG"
	case PropFrechet:
		return "FRECHET"
	default:
		return fmt.Sprintf("PropType(%d)", int(p))
	}
}

func ParsePropType(s string) (PropType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DIAG", "":
		return PropDiag, nil
	case "FRECHET":
		return PropFrechet, nil
	default:
		return 0, fmt.Errorf("unknown prop_type %q: %w", s, ErrConfiguration)
	}
}

func (p PropType) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *PropType) UnmarshalText(b []byte) error {
	v, err := ParsePropType(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Eigensystem is the spectral decomposition of the real-symmetric embedding
// of a slot generator: embed(H) = V diag(Values) Vᵀ. Every eigenvalue of H
// appears twice.
type Eigensystem struct {
	Values  []float64
	Vectors *mat.Dense
}

// propagate returns exp(-i h dt) and, for DIAG, the eigensystem used.
func (p PropType) propagate(h qobj.Operator, dt float64) (qobj.Operator, *Eigensystem, error) {
	if !h.IsFinite() {
		return qobj.Operator{}, nil, ErrNumericalInstability
	}

	var (
		u   qobj.Operator
		eig *Eigensystem
		err error
	)
	switch p {
	case PropDiag:
		u, eig, err = propDiag(h, dt)
	case PropFrechet:
		u, err = propFrechet(h, dt)
	default:
		return qobj.Operator{}, nil, fmt.Errorf("%v: %w", p, ErrConfiguration)
	}
	if err != nil {
		return qobj.Operator{}, nil, err
	}
	if !u.IsFinite() {
		return qobj.Operator{}, nil, ErrNumericalInstability
	}
	return u, eig, nil
}

// propDiag works on M = embed(H), real symmetric. With M = V Λ Vᵀ,
// embed(cos Hdt) = V cos(Λdt) Vᵀ and embed(sin Hdt) = V sin(Λdt) Vᵀ, and
// U = cos(Hdt) - i sin(Hdt) is read off the block columns.
func propDiag(h qobj.Operator, dt float64) (qobj.Operator, *Eigensystem, error) {
	var es mat.EigenSym
	if ok := es.Factorize(h.EmbedSym(), true); !ok {
		return qobj.Operator{}, nil, ErrEigenFailed
	}
	vals := es.Values(nil)
	vecs := mat.NewDense(len(vals), len(vals), nil)
	es.VectorsTo(vecs)

	n2 := len(vals)
	cosV := mat.NewDense(n2, n2, nil)
	sinV := mat.NewDense(n2, n2, nil)
	for j, l := range vals {
		c, s := math.Cos(l*dt), math.Sin(l*dt)
		for i := 0; i < n2; i++ {
			v := vecs.At(i, j)
			cosV.Set(i, j, v*c)
			sinV.Set(i, j, v*s)
		}
	}

	var cm, sm mat.Dense
	cm.Mul(cosV, vecs.T())
	sm.Mul(sinV, vecs.T())

	d := n2 / 2
	data := make([]complex128, d*d)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			re := cm.At(i, j) + sm.At(i+d, j)
			im := cm.At(i+d, j) - sm.At(i, j)
			data[i*d+j] = complex(re, im)
		}
	}
	u, err := qobj.New(d, data)
	if err != nil {
		return qobj.Operator{}, nil, err
	}
	return u, &Eigensystem{Values: vals, Vectors: vecs}, nil
}

func propFrechet(h qobj.Operator, dt float64) (qobj.Operator, error) {
	a := h.Scale(complex(0, -dt)).Embed()
	var e mat.Dense
	e.Exp(a)
	return qobj.FromEmbedding(&e)
}
