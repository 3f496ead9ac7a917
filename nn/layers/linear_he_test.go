package layers

import (
	"testing"

	"epsnet/core/ckkswrapper"
	"epsnet/nn"
	"epsnet/tensor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherLinearMatchesPlaintext(t *testing.T) {
	heCtx := ckkswrapper.NewHeContextWithLogN(13)
	lin := NewLinear(6, 5, nn.NewRand(11))
	kit := heCtx.GenServerKit(lin.Rotations())

	cl, err := NewCipherLinear(lin, kit)
	require.NoError(t, err)

	x := []float64{0.3, -1.2, 0.8, 2.0, -0.4, 0.1}
	want, err := lin.Forward(tensor.NewWithData(x), nn.Eval)
	require.NoError(t, err)

	ct, err := heCtx.EncryptVector(x)
	require.NoError(t, err)
	out, err := cl.Forward(ct)
	require.NoError(t, err)
	assert.Equal(t, ct.Level()-lin.Levels(), out.Level())

	got, err := heCtx.DecryptVector(out, lin.OutDim())
	require.NoError(t, err)
	assert.InDeltaSlice(t, want.Data, got, 1e-3)

	ev := cl.Evaluator()
	assert.Equal(t, 2*lin.OutDim(), ev.MulCount)
	assert.Equal(t, 2*lin.OutDim(), ev.RescaleCount)

	// cached plaintexts give the same answer on a second call
	out2, err := cl.Forward(ct)
	require.NoError(t, err)
	got2, err := heCtx.DecryptVector(out2, lin.OutDim())
	require.NoError(t, err)
	assert.InDeltaSlice(t, got, got2, 1e-6)
}

func TestCipherLinearNeedsLevels(t *testing.T) {
	heCtx := ckkswrapper.NewHeContextWithLogN(13)
	lin := NewLinear(2, 2, nn.NewRand(1))
	kit := heCtx.GenServerKit(lin.Rotations())
	cl, err := NewCipherLinear(lin, kit)
	require.NoError(t, err)

	ct, err := heCtx.EncryptVector([]float64{1, 2})
	require.NoError(t, err)
	once, err := cl.Forward(ct)
	require.NoError(t, err)
	_, err = cl.Forward(once)
	assert.Error(t, err)
}
