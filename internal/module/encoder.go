package module

import (
	"fmt"
	"math/rand"
)

// Encoder maps observations to a fixed-size feature vector. One instance is
// shared by every policy head behind a MultiModule.
type Encoder struct {
	obsDim     int
	featureDim int
	net        *Linear
}

// NewEncoder builds a single linear layer obsDim -> featureDim.
func NewEncoder(obsDim, featureDim int, rng *rand.Rand) (*Encoder, error) {
	net, err := NewLinear("encoder", obsDim, featureDim, rng)
	if err != nil {
		return nil, fmt.Errorf("shared encoder: %w", err)
	}
	return &Encoder{obsDim: obsDim, featureDim: featureDim, net: net}, nil
}

// Forward reads ObsKey and returns a batch holding only EncoderFeaturesKey.
func (e *Encoder) Forward(mode Mode, batch Batch) (Batch, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(mode))
	}
	obs, err := batch.slot(ObsKey)
	if err != nil {
		return nil, err
	}
	features, err := e.net.Forward(obs, mode.RecordsGradients())
	if err != nil {
		return nil, err
	}
	return Batch{EncoderFeaturesKey: features}, nil
}

func (e *Encoder) ObsDim() int     { return e.obsDim }
func (e *Encoder) FeatureDim() int { return e.featureDim }

func (e *Encoder) Parameters() []*Parameter { return e.net.Parameters() }

// TraceLen returns how many training passes the encoder has recorded since
// the last reset.
func (e *Encoder) TraceLen() int { return e.net.TraceLen() }

func (e *Encoder) ResetTrace() { e.net.ResetTrace() }
