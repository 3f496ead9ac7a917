package layers

import (
	"fmt"

	"epsnet/nn"
	"epsnet/tensor"
)

// Flatten collapses every axis after the batch axis: (B, d1, d2, ...) becomes
// (B, d1·d2·...). The returned tensor shares x's data.
type Flatten struct{}

// NewFlatten returns a Flatten layer.
func NewFlatten() *Flatten { return &Flatten{} }

// Forward reshapes x keeping the batch axis.
func (f *Flatten) Forward(x *tensor.Tensor, _ nn.Mode) (*tensor.Tensor, error) {
	if x.Rank() < 2 {
		return nil, fmt.Errorf("%w: flatten needs a batch axis, got shape %v", tensor.ErrShape, x.Shape)
	}
	return tensor.Reshape(x, x.Shape[0], tensor.Numel(x.Shape[1:]))
}

// Tag identifies the layer.
func (f *Flatten) Tag() string { return "Flatten" }
