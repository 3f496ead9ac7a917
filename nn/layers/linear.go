package layers

import (
	"fmt"
	"math/rand"

	"epsnet/nn"
	"epsnet/tensor"
)

// Linear is a fully-connected layer y = x·Wᵀ + b.
type Linear struct {
	W, B *tensor.Tensor // W is (out, in), B is (out)
}

// NewLinear allocates an inDim→outDim layer. Weights and bias are drawn from
// U(-1/√inDim, 1/√inDim); a nil rng leaves them zero.
func NewLinear(inDim, outDim int, rng *rand.Rand) *Linear {
	l := &Linear{W: tensor.New(outDim, inDim), B: tensor.New(outDim)}
	if rng != nil {
		bound := nn.FanInBound(inDim)
		nn.InitUniform(l.W, bound, rng)
		nn.InitUniform(l.B, bound, rng)
	}
	return l
}

// InDim is the width of accepted inputs.
func (l *Linear) InDim() int { return l.W.Shape[1] }

// OutDim is the width of produced outputs.
func (l *Linear) OutDim() int { return l.W.Shape[0] }

// Forward maps (B, in) to (B, out). A rank-1 input of width in is treated as
// a single sample and returns rank 1.
func (l *Linear) Forward(x *tensor.Tensor, _ nn.Mode) (*tensor.Tensor, error) {
	if x.Rank() == 0 || x.Dim(-1) != l.InDim() {
		return nil, fmt.Errorf("%w: %s expects trailing dim %d, got shape %v", tensor.ErrShape, l.Tag(), l.InDim(), x.Shape)
	}
	in := x
	if x.Rank() == 1 {
		in = &tensor.Tensor{Data: x.Data, Shape: []int{1, l.InDim()}}
	} else if x.Rank() != 2 {
		return nil, fmt.Errorf("%w: %s expects (batch, %d), got shape %v", tensor.ErrShape, l.Tag(), l.InDim(), x.Shape)
	}
	out, err := tensor.MatMulT(in, l.W)
	if err != nil {
		return nil, err
	}
	outDim := l.OutDim()
	for b := 0; b < out.Shape[0]; b++ {
		row := out.Data[b*outDim : (b+1)*outDim]
		for j := range row {
			row[j] += l.B.Data[j]
		}
	}
	if x.Rank() == 1 {
		out.Shape = []int{outDim}
	}
	return out, nil
}

// Params returns weight and bias.
func (l *Linear) Params() []nn.Param {
	return []nn.Param{{Name: "weight", Value: l.W}, {Name: "bias", Value: l.B}}
}

// Levels is the multiplicative depth consumed by the encrypted forward pass.
func (l *Linear) Levels() int { return 2 }

// Rotations lists the slot rotations the encrypted forward pass needs keys
// for: power-of-two steps for the inner-product tree sum and -j to place
// output j in slot j.
func (l *Linear) Rotations() []int {
	var rots []int
	for step := 1; step < l.InDim(); step *= 2 {
		rots = append(rots, step)
	}
	for j := 1; j < l.OutDim(); j++ {
		rots = append(rots, -j)
	}
	return rots
}

// Tag identifies the layer.
func (l *Linear) Tag() string {
	return fmt.Sprintf("Linear_%d_%d", l.InDim(), l.OutDim())
}
