package layers

import (
	"errors"
	"math"
	"testing"

	"epsnet/nn"
	"epsnet/tensor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReLUAndLeakyReLU(t *testing.T) {
	x := tensor.NewWithData([]float64{-2, 0, 3})
	out, err := NewReLU().Forward(x, nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 3}, out.Data)

	out, err = NewLeakyReLU(DefaultLeakySlope).Forward(x, nn.Eval)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-0.02, 0, 3}, out.Data, 1e-15)
	assert.Equal(t, []float64{-2, 0, 3}, x.Data)
}

func TestDropoutEvalIsIdentity(t *testing.T) {
	d, err := NewDropout(0.5, nn.NewRand(1))
	require.NoError(t, err)
	x := tensor.NewWithData([]float64{1, 2, 3, 4})
	out, err := d.Forward(x, nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, x.Data, out.Data)
}

func TestDropoutTrainScalesSurvivors(t *testing.T) {
	d, err := NewDropout(0.2, nn.NewRand(1))
	require.NoError(t, err)
	x := tensor.New(10000)
	for i := range x.Data {
		x.Data[i] = 1
	}
	out, err := d.Forward(x, nn.Train)
	require.NoError(t, err)
	zeros := 0
	for _, v := range out.Data {
		if v == 0 {
			zeros++
			continue
		}
		assert.InDelta(t, 1.25, v, 1e-12)
	}
	// roughly 20% dropped
	assert.InDelta(t, 2000, zeros, 300)
}

func TestDropoutRejectsBadP(t *testing.T) {
	_, err := NewDropout(1, nil)
	assert.Error(t, err)
	_, err = NewDropout(-0.1, nil)
	assert.Error(t, err)
}

func TestConvOutputSize(t *testing.T) {
	assert.Equal(t, 500, ConvOutputSize(500, 3, 1, 1))
	assert.Equal(t, 250, ConvOutputSize(500, 3, 2, 1))
	assert.Equal(t, 3, ConvOutputSize(5, 3, 1, 0))
	assert.Equal(t, 0, ConvOutputSize(1, 5, 1, 0))
}

func TestConv2DIdentity1x1(t *testing.T) {
	conv, err := NewConv2D(1, 1, 1, 1, 0, nil)
	require.NoError(t, err)
	conv.W.Set(1.0, 0, 0, 0, 0)

	input := tensor.New(1, 1, 3, 3)
	for i := range input.Data {
		input.Data[i] = float64(i + 1)
	}
	out, err := conv.Forward(input, nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 3, 3}, out.Shape)
	assert.Equal(t, input.Data, out.Data)
}

func TestConv2DPaddingAndStride(t *testing.T) {
	// all-ones 3x3 kernel with padding 1 sums each 3x3 neighbourhood
	conv, err := NewConv2D(1, 1, 3, 1, 1, nil)
	require.NoError(t, err)
	for i := range conv.W.Data {
		conv.W.Data[i] = 1
	}
	conv.B.Data[0] = 0.5

	input := tensor.New(1, 1, 3, 3)
	for i := range input.Data {
		input.Data[i] = 1
	}
	out, err := conv.Forward(input, nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 3, 3}, out.Shape)
	assert.Equal(t, []float64{4.5, 6.5, 4.5, 6.5, 9.5, 6.5, 4.5, 6.5, 4.5}, out.Data)

	conv.Stride = 2
	out, err = conv.Forward(input, nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2, 2}, out.Shape)
	assert.Equal(t, []float64{4.5, 4.5, 4.5, 4.5}, out.Data)
}

func TestConv2DMultiChannelBatch(t *testing.T) {
	conv, err := NewConv2D(2, 1, 1, 1, 0, nil)
	require.NoError(t, err)
	conv.W.Set(1, 0, 0, 0, 0)
	conv.W.Set(-1, 0, 1, 0, 0)

	input := tensor.New(2, 2, 1, 2)
	copy(input.Data, []float64{5, 6, 1, 2, 7, 8, 3, 3})
	out, err := conv.Forward(input, nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 1, 2}, out.Shape)
	assert.Equal(t, []float64{4, 4, 4, 5}, out.Data)
}

func TestConv2DRejectsWrongChannels(t *testing.T) {
	conv, err := NewConv2D(3, 4, 3, 1, 1, nn.NewRand(1))
	require.NoError(t, err)
	_, err = conv.Forward(tensor.New(1, 1, 8, 8), nn.Eval)
	assert.True(t, errors.Is(err, tensor.ErrShape))

	_, err = NewConv2D(3, 4, 3, 0, 1, nil)
	assert.Error(t, err)
}

func TestBatchNormTrainNormalizesAndUpdatesStats(t *testing.T) {
	bn := NewBatchNorm2D(1)
	x := tensor.New(2, 1, 1, 2)
	copy(x.Data, []float64{1, 2, 3, 4})

	out, err := bn.Forward(x, nn.Train)
	require.NoError(t, err)

	// batch mean 2.5, biased variance 1.25
	std := math.Sqrt(1.25 + DefaultBNEps)
	want := []float64{-1.5 / std, -0.5 / std, 0.5 / std, 1.5 / std}
	assert.InDeltaSlice(t, want, out.Data, 1e-12)

	// running stats: mean 0.9*0 + 0.1*2.5, var 0.9*1 + 0.1*(5/3)
	assert.InDelta(t, 0.25, bn.RunningMean.Data[0], 1e-12)
	assert.InDelta(t, 0.9+0.1*5.0/3.0, bn.RunningVar.Data[0], 1e-12)
}

func TestBatchNormEvalUsesRunningStats(t *testing.T) {
	bn := NewBatchNorm2D(2)
	bn.RunningMean.Data[1] = 1
	bn.RunningVar.Data[1] = 4
	bn.Gamma.Data[1] = 2
	bn.Beta.Data[1] = 0.5

	x := tensor.New(1, 2, 1, 1)
	copy(x.Data, []float64{3, 3})
	out, err := bn.Forward(x, nn.Eval)
	require.NoError(t, err)
	assert.InDelta(t, 3/math.Sqrt(1+DefaultBNEps), out.Data[0], 1e-12)
	assert.InDelta(t, 2*2/math.Sqrt(4+DefaultBNEps)+0.5, out.Data[1], 1e-12)

	assert.Equal(t, []float64{0, 1}, bn.RunningMean.Data)
	assert.Equal(t, []float64{1, 4}, bn.RunningVar.Data)
}

func TestBatchNormTrainNeedsTwoValues(t *testing.T) {
	bn := NewBatchNorm2D(1)
	_, err := bn.Forward(tensor.New(1, 1, 1, 1), nn.Train)
	assert.Error(t, err)
	_, err = bn.Forward(tensor.New(1, 1, 1, 1), nn.Eval)
	assert.NoError(t, err)
}

func TestMaxPool2DFloor(t *testing.T) {
	mp, err := NewMaxPool2D(2)
	require.NoError(t, err)
	x := tensor.New(1, 1, 3, 5)
	for i := range x.Data {
		x.Data[i] = float64(i)
	}
	out, err := mp.Forward(x, nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1, 2}, out.Shape)
	assert.Equal(t, []float64{6, 8}, out.Data)
	assert.Equal(t, 62, mp.OutputSize(125))
}

func TestMaxPool2DNegativeValues(t *testing.T) {
	mp, err := NewMaxPool2D(2)
	require.NoError(t, err)
	x := tensor.New(1, 1, 2, 2)
	copy(x.Data, []float64{-4, -3, -2, -5})
	out, err := mp.Forward(x, nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, []float64{-2}, out.Data)
}

func TestFlattenKeepsBatch(t *testing.T) {
	x := tensor.New(2, 3, 4, 5)
	out, err := NewFlatten().Forward(x, nn.Eval)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 60}, out.Shape)

	_, err = NewFlatten().Forward(tensor.New(7), nn.Eval)
	assert.True(t, errors.Is(err, tensor.ErrShape))
}
