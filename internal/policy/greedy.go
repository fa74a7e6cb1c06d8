package policy

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Greedy picks the highest-logit action of each row
type Greedy struct{}

// SelectActions implements Policy interface
func (Greedy) SelectActions(logits *mat.Dense) ([]int, error) {
	n, _ := logits.Dims()
	actions := make([]int, n)
	for i := range actions {
		actions[i] = floats.MaxIdx(logits.RawRowView(i))
	}
	return actions, nil
}
