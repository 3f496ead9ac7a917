package layers

import (
	"fmt"
	"math"

	"epsnet/nn"
	"epsnet/tensor"
)

const (
	// DefaultBNMomentum weights the newest batch in the running estimates.
	DefaultBNMomentum = 0.1
	// DefaultBNEps is added to the variance before the square root.
	DefaultBNEps = 1e-5
)

// BatchNorm2D normalizes each channel of a (B, C, H, W) batch.
//
// In Train mode it normalizes with the batch mean and biased variance, then
// folds the batch mean and unbiased variance into RunningMean and RunningVar
// with weight Momentum. In Eval mode it normalizes with the running estimates
// and leaves them untouched.
type BatchNorm2D struct {
	Channels int
	Eps      float64
	Momentum float64

	Gamma, Beta             *tensor.Tensor // learnable affine, (C)
	RunningMean, RunningVar *tensor.Tensor // buffers, (C)
}

// NewBatchNorm2D returns a layer with unit scale, zero shift, zero running
// mean and unit running variance.
func NewBatchNorm2D(channels int) *BatchNorm2D {
	bn := &BatchNorm2D{
		Channels:    channels,
		Eps:         DefaultBNEps,
		Momentum:    DefaultBNMomentum,
		Gamma:       tensor.New(channels),
		Beta:        tensor.New(channels),
		RunningMean: tensor.New(channels),
		RunningVar:  tensor.New(channels),
	}
	for i := 0; i < channels; i++ {
		bn.Gamma.Data[i] = 1
		bn.RunningVar.Data[i] = 1
	}
	return bn
}

// Forward normalizes x per channel.
func (bn *BatchNorm2D) Forward(x *tensor.Tensor, mode nn.Mode) (*tensor.Tensor, error) {
	if x.Rank() != 4 || x.Shape[1] != bn.Channels {
		return nil, fmt.Errorf("%w: %s expects (batch, %d, h, w), got shape %v", tensor.ErrShape, bn.Tag(), bn.Channels, x.Shape)
	}
	batch, plane := x.Shape[0], x.Shape[2]*x.Shape[3]
	n := batch * plane

	mean := make([]float64, bn.Channels)
	variance := make([]float64, bn.Channels)
	if mode == nn.Train {
		if n < 2 {
			return nil, fmt.Errorf("%s: need more than one value per channel in train mode, got %d", bn.Tag(), n)
		}
		for c := 0; c < bn.Channels; c++ {
			sum := 0.0
			for b := 0; b < batch; b++ {
				for _, v := range channelPlane(x, b, c) {
					sum += v
				}
			}
			m := sum / float64(n)
			sq := 0.0
			for b := 0; b < batch; b++ {
				for _, v := range channelPlane(x, b, c) {
					d := v - m
					sq += d * d
				}
			}
			mean[c] = m
			variance[c] = sq / float64(n)

			unbiased := sq / float64(n-1)
			bn.RunningMean.Data[c] = (1-bn.Momentum)*bn.RunningMean.Data[c] + bn.Momentum*m
			bn.RunningVar.Data[c] = (1-bn.Momentum)*bn.RunningVar.Data[c] + bn.Momentum*unbiased
		}
	} else {
		copy(mean, bn.RunningMean.Data)
		copy(variance, bn.RunningVar.Data)
	}

	out := tensor.New(x.Shape...)
	for c := 0; c < bn.Channels; c++ {
		scale := bn.Gamma.Data[c] / math.Sqrt(variance[c]+bn.Eps)
		shift := bn.Beta.Data[c] - mean[c]*scale
		for b := 0; b < batch; b++ {
			src := channelPlane(x, b, c)
			dst := channelPlane(out, b, c)
			for i, v := range src {
				dst[i] = v*scale + shift
			}
		}
	}
	return out, nil
}

func channelPlane(t *tensor.Tensor, b, c int) []float64 {
	plane := t.Shape[2] * t.Shape[3]
	off := (b*t.Shape[1] + c) * plane
	return t.Data[off : off+plane]
}

// Params returns the affine scale and shift.
func (bn *BatchNorm2D) Params() []nn.Param {
	return []nn.Param{{Name: "weight", Value: bn.Gamma}, {Name: "bias", Value: bn.Beta}}
}

// Buffers returns the running statistics.
func (bn *BatchNorm2D) Buffers() []nn.Param {
	return []nn.Param{{Name: "running_mean", Value: bn.RunningMean}, {Name: "running_var", Value: bn.RunningVar}}
}

// Tag identifies the layer.
func (bn *BatchNorm2D) Tag() string { return fmt.Sprintf("BatchNorm2D_%d", bn.Channels) }
