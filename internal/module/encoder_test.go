package module

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestEncoderForward(t *testing.T) {
	enc, err := NewEncoder(4, 8, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	assert.Equal(t, 4, enc.ObsDim())
	assert.Equal(t, 8, enc.FeatureDim())

	obs := mat.NewDense(3, 4, []float64{
		0.1, 0.2, 0.3, 0.4,
		-1, 0, 1, 2,
		5, 5, 5, 5,
	})
	out, err := enc.Forward(ModeInference, Batch{ObsKey: obs})
	require.NoError(t, err)
	require.Len(t, out, 1)

	features := out[EncoderFeaturesKey]
	require.NotNil(t, features)
	rows, cols := features.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 8, cols)
}

func TestEncoderIdempotentWithoutGradients(t *testing.T) {
	enc, err := NewEncoder(4, 16, rand.New(rand.NewSource(11)))
	require.NoError(t, err)

	obs := mat.NewDense(1, 4, []float64{0.5, -0.25, 1, 0})
	for _, mode := range []Mode{ModeInference, ModeExploration} {
		first, err := enc.Forward(mode, Batch{ObsKey: obs})
		require.NoError(t, err)
		second, err := enc.Forward(mode, Batch{ObsKey: obs})
		require.NoError(t, err)

		assert.True(t, mat.Equal(first[EncoderFeaturesKey], second[EncoderFeaturesKey]), mode.String())
		assert.Equal(t, 0, enc.TraceLen(), mode.String())
	}
}

func TestEncoderModesAgree(t *testing.T) {
	enc, err := NewEncoder(4, 16, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	obs := mat.NewDense(2, 4, []float64{1, 2, 3, 4, 4, 3, 2, 1})
	inf, err := enc.Forward(ModeInference, Batch{ObsKey: obs})
	require.NoError(t, err)
	train, err := enc.Forward(ModeTrain, Batch{ObsKey: obs})
	require.NoError(t, err)

	assert.True(t, mat.Equal(inf[EncoderFeaturesKey], train[EncoderFeaturesKey]))
	assert.Equal(t, 1, enc.TraceLen())

	enc.ResetTrace()
	assert.Equal(t, 0, enc.TraceLen())
}

func TestEncoderErrors(t *testing.T) {
	_, err := NewEncoder(0, 8, rand.New(rand.NewSource(1)))
	assert.Error(t, err)

	enc, err := NewEncoder(4, 8, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	_, err = enc.Forward(ModeInference, Batch{})
	assert.ErrorIs(t, err, ErrMissingSlot)

	_, err = enc.Forward(ModeInference, Batch{ObsKey: mat.NewDense(1, 3, nil)})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = enc.Forward(Mode(9), Batch{ObsKey: mat.NewDense(1, 4, nil)})
	assert.ErrorIs(t, err, ErrInvalidMode)
}
