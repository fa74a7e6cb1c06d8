// Package policy turns action distribution inputs into concrete actions
package policy

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/cartridge/multipolicy/internal/module"
)

// Policy interface for action selection
type Policy interface {
	// SelectActions picks one action per row of logits
	SelectActions(logits *mat.Dense) ([]int, error)
}

// ForMode returns the selector matching a forward mode: greedy for
// inference, sampling for exploration and training.
func ForMode(mode module.Mode, sampler *Categorical) Policy {
	if mode == module.ModeInference {
		return Greedy{}
	}
	return sampler
}

// SelectAll applies p to the ActionDistInputsKey slot of every output.
func SelectAll(p Policy, outputs map[string]module.Batch) (map[string][]int, error) {
	actions := make(map[string][]int, len(outputs))
	for id, out := range outputs {
		logits, ok := out[module.ActionDistInputsKey]
		if !ok || logits == nil {
			return nil, fmt.Errorf("policy %q: %w: %q", id, module.ErrMissingSlot, module.ActionDistInputsKey)
		}
		selected, err := p.SelectActions(logits)
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", id, err)
		}
		actions[id] = selected
	}
	return actions, nil
}
