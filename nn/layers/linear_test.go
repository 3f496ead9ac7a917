package layers

import (
	"errors"
	"testing"

	"epsnet/nn"
	"epsnet/tensor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearForwardBatch(t *testing.T) {
	l := NewLinear(3, 2, nil)
	copy(l.W.Data, []float64{1, 2, 3, -1, 0, 1})
	copy(l.B.Data, []float64{0.5, -0.5})

	x, err := tensor.FromData([]float64{1, 1, 1, 2, 0, -1}, 2, 3)
	require.NoError(t, err)
	out, err := l.Forward(x, nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, out.Shape)
	assert.InDeltaSlice(t, []float64{6.5, -0.5, -0.5, -3.5}, out.Data, 1e-12)
}

func TestLinearForwardVector(t *testing.T) {
	l := NewLinear(2, 1, nil)
	copy(l.W.Data, []float64{2, 3})
	out, err := l.Forward(tensor.NewWithData([]float64{1, 1}), nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, out.Shape)
	assert.Equal(t, 5.0, out.Data[0])
}

func TestLinearShapeMismatch(t *testing.T) {
	l := NewLinear(4, 2, nn.NewRand(1))
	_, err := l.Forward(tensor.New(3, 5), nn.Eval)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tensor.ErrShape))

	_, err = l.Forward(tensor.New(2, 2, 4), nn.Eval)
	assert.True(t, errors.Is(err, tensor.ErrShape))
}

func TestLinearInitBounds(t *testing.T) {
	l := NewLinear(36, 64, nn.NewRand(3))
	bound := nn.FanInBound(36)
	for _, p := range l.Params() {
		for _, v := range p.Value.Data {
			assert.LessOrEqual(t, v, bound)
			assert.GreaterOrEqual(t, v, -bound)
		}
	}
	assert.Equal(t, "Linear_36_64", l.Tag())
	assert.Equal(t, 36*64+64, nn.NumParams(l.Params()))
}

func TestLinearRotations(t *testing.T) {
	l := NewLinear(6, 3, nil)
	assert.Equal(t, []int{1, 2, 4, -1, -2}, l.Rotations())
	assert.Equal(t, 2, l.Levels())
}
