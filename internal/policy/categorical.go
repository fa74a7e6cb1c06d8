package policy

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Categorical samples actions from softmax(logits)
type Categorical struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewCategorical creates a sampler seeded from the clock
func NewCategorical() *Categorical {
	return NewCategoricalWithSeed(time.Now().UnixNano())
}

// NewCategoricalWithSeed creates a reproducible sampler
func NewCategoricalWithSeed(seed int64) *Categorical {
	return &Categorical{rng: rand.New(rand.NewSource(seed))}
}

// SelectActions implements Policy interface
func (c *Categorical) SelectActions(logits *mat.Dense) ([]int, error) {
	n, k := logits.Dims()
	probs := make([]float64, k)
	actions := make([]int, n)

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range actions {
		row := logits.RawRowView(i)
		Probabilities(probs, row)

		u := c.rng.Float64()
		actions[i] = k - 1 // guards against rounding in the cumulative sum
		var cum float64
		for a, p := range probs {
			cum += p
			if u < cum {
				actions[i] = a
				break
			}
		}
	}
	return actions, nil
}

// Probabilities writes softmax(logits) into dst.
func Probabilities(dst, logits []float64) {
	lse := floats.LogSumExp(logits)
	for i, l := range logits {
		dst[i] = math.Exp(l - lse)
	}
}
