package layers

import (
	"fmt"

	"epsnet/nn"
	"epsnet/tensor"
)

// ReLU is max(0, x) applied elementwise.
type ReLU struct{}

// NewReLU returns a ReLU layer.
func NewReLU() *ReLU { return &ReLU{} }

// Forward applies the activation to any shape.
func (r *ReLU) Forward(x *tensor.Tensor, _ nn.Mode) (*tensor.Tensor, error) {
	return tensor.ReluPlain(x), nil
}

// Tag identifies the layer.
func (r *ReLU) Tag() string { return "ReLU" }

// DefaultLeakySlope is the negative-side slope used by the image encoder.
const DefaultLeakySlope = 0.01

// LeakyReLU is x for x > 0 and Slope·x otherwise.
type LeakyReLU struct {
	Slope float64
}

// NewLeakyReLU returns a LeakyReLU with the given negative slope.
func NewLeakyReLU(slope float64) *LeakyReLU { return &LeakyReLU{Slope: slope} }

// Forward applies the activation to any shape.
func (l *LeakyReLU) Forward(x *tensor.Tensor, _ nn.Mode) (*tensor.Tensor, error) {
	out := tensor.New(x.Shape...)
	for i, v := range x.Data {
		if v > 0 {
			out.Data[i] = v
		} else {
			out.Data[i] = l.Slope * v
		}
	}
	return out, nil
}

// Tag identifies the layer.
func (l *LeakyReLU) Tag() string { return fmt.Sprintf("LeakyReLU_%g", l.Slope) }
