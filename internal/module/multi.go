package module

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// MultiModule routes each policy's batch through the shared encoder and then
// through that policy's head. The registry is fixed at construction.
type MultiModule struct {
	encoder  *Encoder
	policies map[string]Module
	ids      []string

	parallelism int
	logger      zerolog.Logger
}

// Option configures a MultiModule.
type Option func(*MultiModule)

// WithParallel runs up to n policy passes concurrently. n <= 1 keeps the
// sequential dispatch.
func WithParallel(n int) Option {
	return func(m *MultiModule) {
		m.parallelism = n
	}
}

// WithLogger sets the logger used for dispatch tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *MultiModule) {
		m.logger = logger
	}
}

// New validates the registry and returns a router over it. The policies map
// is copied.
func New(encoder *Encoder, policies map[string]Module, opts ...Option) (*MultiModule, error) {
	if encoder == nil {
		return nil, ErrMissingEncoder
	}
	if len(policies) == 0 {
		return nil, ErrNoPolicies
	}

	m := &MultiModule{
		encoder:     encoder,
		policies:    make(map[string]Module, len(policies)),
		ids:         make([]string, 0, len(policies)),
		parallelism: 1,
		logger:      zerolog.Nop(),
	}
	for id, policy := range policies {
		switch {
		case id == "":
			return nil, ErrEmptyPolicyID
		case id == SharedEncoderID:
			return nil, fmt.Errorf("%w: %q", ErrReservedID, id)
		case isNilModule(policy):
			return nil, fmt.Errorf("policy %q: module is nil", id)
		}
		if fc, ok := policy.(featureConsumer); ok && fc.FeatureDim() != encoder.FeatureDim() {
			return nil, fmt.Errorf("%w: policy %q expects %d features, encoder produces %d",
				ErrShapeMismatch, id, fc.FeatureDim(), encoder.FeatureDim())
		}
		m.policies[id] = policy
		m.ids = append(m.ids, id)
	}
	sort.Strings(m.ids)

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Encoder returns the shared encoder.
func (m *MultiModule) Encoder() *Encoder { return m.encoder }

// Policy returns the module registered under id.
func (m *MultiModule) Policy(id string) (Module, error) {
	policy, ok := m.policies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, id)
	}
	return policy, nil
}

// PolicyIDs returns the registered policy ids in sorted order.
func (m *MultiModule) PolicyIDs() []string {
	return append([]string(nil), m.ids...)
}

// Contains reports whether id names a registered policy.
func (m *MultiModule) Contains(id string) bool {
	_, ok := m.policies[id]
	return ok
}

// Len returns the number of policies.
func (m *MultiModule) Len() int { return len(m.policies) }

// Forward runs one pass for every policy in batch. Every id is checked
// against the registry before any computation starts. The caller's batches
// are not modified.
func (m *MultiModule) Forward(ctx context.Context, mode Mode, batch map[string]Batch) (map[string]Batch, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(mode))
	}
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}

	ids := make([]string, 0, len(batch))
	for id := range batch {
		if !m.Contains(id) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownModule, id)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]Batch, len(ids))
	if m.parallelism <= 1 || len(ids) == 1 {
		for i, id := range ids {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out, err := m.forwardPolicy(mode, id, batch[id])
			if err != nil {
				return nil, err
			}
			results[i] = out
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(m.parallelism)
		for i, id := range ids {
			i, id := i, id
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				out, err := m.forwardPolicy(mode, id, batch[id])
				if err != nil {
					return err
				}
				results[i] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	outputs := make(map[string]Batch, len(ids))
	for i, id := range ids {
		outputs[id] = results[i]
	}
	return outputs, nil
}

// ForwardInference is Forward in ModeInference.
func (m *MultiModule) ForwardInference(ctx context.Context, batch map[string]Batch) (map[string]Batch, error) {
	return m.Forward(ctx, ModeInference, batch)
}

// ForwardExploration is Forward in ModeExploration.
func (m *MultiModule) ForwardExploration(ctx context.Context, batch map[string]Batch) (map[string]Batch, error) {
	return m.Forward(ctx, ModeExploration, batch)
}

// ForwardTrain is Forward in ModeTrain.
func (m *MultiModule) ForwardTrain(ctx context.Context, batch map[string]Batch) (map[string]Batch, error) {
	return m.Forward(ctx, ModeTrain, batch)
}

func (m *MultiModule) forwardPolicy(mode Mode, id string, in Batch) (Batch, error) {
	features, err := m.encoder.Forward(mode, in)
	if err != nil {
		return nil, fmt.Errorf("policy %q: %s: %w", id, SharedEncoderID, err)
	}

	augmented := in.Clone()
	augmented[EncoderFeaturesKey] = features[EncoderFeaturesKey]

	out, err := m.policies[id].Forward(mode, augmented)
	if err != nil {
		return nil, fmt.Errorf("policy %q: %w", id, err)
	}
	m.logger.Debug().
		Str("policy_id", id).
		Str("mode", mode.String()).
		Msg("policy forward pass complete")
	return out, nil
}

// Parameters lists the encoder's parameters once, followed by every policy's
// parameters in id order. Names are prefixed with the owning module id.
func (m *MultiModule) Parameters() []*Parameter {
	var params []*Parameter
	for _, p := range m.encoder.Parameters() {
		params = append(params, &Parameter{Name: SharedEncoderID + "." + p.Name, Value: p.Value})
	}
	for _, id := range m.ids {
		for _, p := range m.policies[id].Parameters() {
			params = append(params, &Parameter{Name: id + "." + p.Name, Value: p.Value})
		}
	}
	return params
}

// ResetTraces clears the recorded activations of every submodule.
func (m *MultiModule) ResetTraces() {
	m.encoder.ResetTrace()
	for _, id := range m.ids {
		if t, ok := m.policies[id].(tracer); ok {
			t.ResetTrace()
		}
	}
}

// isNilModule reports whether m is nil or wraps a nil *PolicyHead. Other
// Module implementations must not be registered as typed nils.
func isNilModule(m Module) bool {
	switch p := m.(type) {
	case nil:
		return true
	case *PolicyHead:
		return p == nil
	default:
		return false
	}
}
