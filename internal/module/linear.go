package module

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Linear computes y = x·Wᵀ + b with W shaped [out x in].
type Linear struct {
	name    string
	in, out int
	weight  *mat.Dense
	bias    *mat.Dense // 1 x out

	mu    sync.Mutex
	trace []*mat.Dense // inputs seen in ModeTrain
}

// NewLinear creates a layer initialised uniformly in [-1/sqrt(in), 1/sqrt(in)].
func NewLinear(name string, in, out int, rng *rand.Rand) (*Linear, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("linear %s: dimensions must be positive, got in=%d out=%d", name, in, out)
	}
	if rng == nil {
		return nil, fmt.Errorf("linear %s: random source is required", name)
	}

	bound := 1 / math.Sqrt(float64(in))
	uniform := func(n int) []float64 {
		data := make([]float64, n)
		for i := range data {
			data[i] = (rng.Float64()*2 - 1) * bound
		}
		return data
	}

	return &Linear{
		name:   name,
		in:     in,
		out:    out,
		weight: mat.NewDense(out, in, uniform(out*in)),
		bias:   mat.NewDense(1, out, uniform(out)),
	}, nil
}

// Dims returns the input and output widths.
func (l *Linear) Dims() (in, out int) {
	return l.in, l.out
}

// Forward applies the layer to x. When record is set, a copy of x is kept
// in the trace.
func (l *Linear) Forward(x *mat.Dense, record bool) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if cols != l.in {
		return nil, fmt.Errorf("%w: %s expects %d columns, got %d", ErrShapeMismatch, l.name, l.in, cols)
	}

	y := mat.NewDense(rows, l.out, nil)
	y.Mul(x, l.weight.T())
	b := l.bias.RawRowView(0)
	for i := 0; i < rows; i++ {
		floats.Add(y.RawRowView(i), b)
	}

	if record {
		l.mu.Lock()
		l.trace = append(l.trace, mat.DenseCopyOf(x))
		l.mu.Unlock()
	}
	return y, nil
}

// TraceLen returns the number of recorded inputs.
func (l *Linear) TraceLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.trace)
}

// ResetTrace drops every recorded input.
func (l *Linear) ResetTrace() {
	l.mu.Lock()
	l.trace = nil
	l.mu.Unlock()
}

// Parameters returns the weight and bias.
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{
		{Name: l.name + ".weight", Value: l.weight},
		{Name: l.name + ".bias", Value: l.bias},
	}
}

func relu(m *mat.Dense) {
	m.Apply(func(_, _ int, v float64) float64 {
		return math.Max(0, v)
	}, m)
}
