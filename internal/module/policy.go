package module

import (
	"fmt"
	"math/rand"
)

// PolicyHead turns encoder features into logits over a discrete action space:
// Linear(feature, hidden) -> ReLU -> Linear(hidden, actions).
type PolicyHead struct {
	featureDim int
	hiddenDim  int
	numActions int

	hidden *Linear
	logits *Linear
}

// NewPolicyHead creates a head for an action space with numActions choices.
func NewPolicyHead(featureDim, hiddenDim, numActions int, rng *rand.Rand) (*PolicyHead, error) {
	hidden, err := NewLinear("pi.0", featureDim, hiddenDim, rng)
	if err != nil {
		return nil, fmt.Errorf("policy head: %w", err)
	}
	logits, err := NewLinear("pi.2", hiddenDim, numActions, rng)
	if err != nil {
		return nil, fmt.Errorf("policy head: %w", err)
	}
	return &PolicyHead{
		featureDim: featureDim,
		hiddenDim:  hiddenDim,
		numActions: numActions,
		hidden:     hidden,
		logits:     logits,
	}, nil
}

// Forward reads EncoderFeaturesKey and returns ActionDistInputsKey.
func (p *PolicyHead) Forward(mode Mode, batch Batch) (Batch, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(mode))
	}
	features, err := batch.slot(EncoderFeaturesKey)
	if err != nil {
		return nil, err
	}

	record := mode.RecordsGradients()
	h, err := p.hidden.Forward(features, record)
	if err != nil {
		return nil, err
	}
	relu(h)
	logits, err := p.logits.Forward(h, record)
	if err != nil {
		return nil, err
	}
	return Batch{ActionDistInputsKey: logits}, nil
}

func (p *PolicyHead) FeatureDim() int { return p.featureDim }
func (p *PolicyHead) HiddenDim() int  { return p.hiddenDim }
func (p *PolicyHead) NumActions() int { return p.numActions }

func (p *PolicyHead) Parameters() []*Parameter {
	return append(p.hidden.Parameters(), p.logits.Parameters()...)
}

// TraceLen returns the number of recorded passes through the head.
func (p *PolicyHead) TraceLen() int { return p.logits.TraceLen() }

func (p *PolicyHead) ResetTrace() {
	p.hidden.ResetTrace()
	p.logits.ResetTrace()
}
