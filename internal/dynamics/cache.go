package dynamics

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/san-kum/qctrl/internal/qobj"
)

// slotKey identifies the amplitude row a cached propagator was built from.
type slotKey struct {
	hash uint64
	row  []float64
}

func newSlotKey(row []float64) slotKey {
	r := make([]float64, len(row))
	copy(r, row)
	return slotKey{hash: rowHash(row), row: r}
}

// matches compares hashes first and falls back to the stored row, so a hash
// collision can never return a stale propagator.
func (k slotKey) matches(hash uint64, row []float64) bool {
	if k.row == nil || k.hash != hash || len(k.row) != len(row) {
		return false
	}
	for i, v := range row {
		if math.Float64bits(k.row[i]) != math.Float64bits(v) {
			return false
		}
	}
	return true
}

func rowHash(row []float64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, v := range row {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return h.Sum64()
}

type slotEntry struct {
	key   slotKey
	gen   qobj.Operator
	prop  qobj.Operator
	eigen *Eigensystem
	valid bool
}
