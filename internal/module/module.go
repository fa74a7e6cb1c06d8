// Package module composes a shared observation encoder with any number of
// per-policy heads and routes multi-policy batches through them.
package module

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Reserved batch slots and the registry name of the shared encoder.
const (
	ObsKey              = "obs"
	EncoderFeaturesKey  = "encoder_features"
	ActionDistInputsKey = "action_dist_inputs"

	SharedEncoderID = "shared_encoder"
)

var (
	ErrMissingEncoder = errors.New("shared encoder is required")
	ErrNoPolicies     = errors.New("at least one policy module is required")
	ErrReservedID     = errors.New("policy id collides with the shared encoder id")
	ErrEmptyPolicyID  = errors.New("policy id must not be empty")
	ErrUnknownModule  = errors.New("module not found")
	ErrEmptyBatch     = errors.New("batch contains no policies")
	ErrMissingSlot    = errors.New("batch slot missing")
	ErrShapeMismatch  = errors.New("tensor shape mismatch")
	ErrInvalidMode    = errors.New("invalid forward mode")
)

// Batch maps named slots to row-major tensors. Rows are batch entries.
type Batch map[string]*mat.Dense

// Clone returns a shallow copy; tensors are shared.
func (b Batch) Clone() Batch {
	out := make(Batch, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	return out
}

func (b Batch) slot(key string) (*mat.Dense, error) {
	t, ok := b[key]
	if !ok || t == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingSlot, key)
	}
	return t, nil
}

// Mode selects the forward pass variant. The computation is the same for all
// modes; only Train records activations for a later backward pass.
type Mode int

const (
	ModeInference Mode = iota
	ModeExploration
	ModeTrain
)

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inference":
		return ModeInference, nil
	case "exploration":
		return ModeExploration, nil
	case "train", "training":
		return ModeTrain, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeInference:
		return "inference"
	case ModeExploration:
		return "exploration"
	case ModeTrain:
		return "train"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the three known modes.
func (m Mode) Valid() bool {
	return m >= ModeInference && m <= ModeTrain
}

// RecordsGradients reports whether a pass in this mode keeps the activations
// a backward pass needs.
func (m Mode) RecordsGradients() bool {
	return m == ModeTrain
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Parameter is a named trainable tensor.
type Parameter struct {
	Name  string
	Value *mat.Dense
}

// Module is a single forward-able network.
type Module interface {
	// Forward runs the module on batch and returns the slots it produces.
	Forward(mode Mode, batch Batch) (Batch, error)
	Parameters() []*Parameter
}

// tracer is implemented by modules that keep activations recorded in
// ModeTrain.
type tracer interface {
	ResetTrace()
}

// featureConsumer is implemented by modules that read EncoderFeaturesKey.
type featureConsumer interface {
	FeatureDim() int
}
