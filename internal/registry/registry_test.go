package registry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cartridge/multipolicy/internal/config"
	"github.com/cartridge/multipolicy/internal/module"
)

func TestBuildDefault(t *testing.T) {
	m, err := Build(config.Default(), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"p0", "p1"}, m.PolicyIDs())
	assert.Equal(t, 4, m.Encoder().ObsDim())
	assert.Equal(t, 64, m.Encoder().FeatureDim())

	p, err := m.Policy("p0")
	require.NoError(t, err)
	head := p.(*module.PolicyHead)
	assert.Equal(t, 2, head.NumActions())
	assert.Equal(t, 64, head.HiddenDim())
}

func TestBuildHiddenOverride(t *testing.T) {
	cfg := config.Default()
	cfg.Policies[1].HiddenDim = 8

	m, err := Build(cfg, zerolog.Nop())
	require.NoError(t, err)

	p, err := m.Policy("p1")
	require.NoError(t, err)
	assert.Equal(t, 8, p.(*module.PolicyHead).HiddenDim())
}

func TestBuildDeterministic(t *testing.T) {
	a, err := Build(config.Default(), zerolog.Nop())
	require.NoError(t, err)
	b, err := Build(config.Default(), zerolog.Nop())
	require.NoError(t, err)

	batch := map[string]module.Batch{
		"p0": {module.ObsKey: mat.NewDense(1, 4, []float64{0.1, 0.2, 0.3, 0.4})},
		"p1": {module.ObsKey: mat.NewDense(1, 4, []float64{0.4, 0.3, 0.2, 0.1})},
	}
	outA, err := a.ForwardInference(context.Background(), batch)
	require.NoError(t, err)
	outB, err := b.ForwardInference(context.Background(), batch)
	require.NoError(t, err)

	for id := range batch {
		assert.True(t, mat.Equal(outA[id][module.ActionDistInputsKey], outB[id][module.ActionDistInputsKey]), id)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Policies = nil

	_, err := Build(cfg, zerolog.Nop())
	assert.Error(t, err)
}
