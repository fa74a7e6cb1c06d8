package module

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Rows is the JSON form of a tensor: one inner slice per batch entry.
type Rows [][]float64

// Dense converts r into a matrix. r must be non-empty and rectangular.
func (r Rows) Dense() (*mat.Dense, error) {
	if len(r) == 0 || len(r[0]) == 0 {
		return nil, fmt.Errorf("%w: tensor must have at least one row and column", ErrShapeMismatch)
	}
	width := len(r[0])
	data := make([]float64, 0, len(r)*width)
	for i, row := range r {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShapeMismatch, i, len(row), width)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(r), width, data), nil
}

// RowsOf copies m into its JSON form.
func RowsOf(m *mat.Dense) Rows {
	n, _ := m.Dims()
	out := make(Rows, n)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}

// DecodeBatches converts per-policy JSON slots into batches.
func DecodeBatches(in map[string]map[string]Rows) (map[string]Batch, error) {
	batches := make(map[string]Batch, len(in))
	for id, slots := range in {
		b := make(Batch, len(slots))
		for key, r := range slots {
			t, err := r.Dense()
			if err != nil {
				return nil, fmt.Errorf("policy %q slot %q: %w", id, key, err)
			}
			b[key] = t
		}
		batches[id] = b
	}
	return batches, nil
}

// EncodeBatches is the inverse of DecodeBatches.
func EncodeBatches(in map[string]Batch) map[string]map[string]Rows {
	out := make(map[string]map[string]Rows, len(in))
	for id, b := range in {
		slots := make(map[string]Rows, len(b))
		for key, t := range b {
			slots[key] = RowsOf(t)
		}
		out[id] = slots
	}
	return out
}
