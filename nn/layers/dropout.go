package layers

import (
	"fmt"
	"math/rand"

	"epsnet/nn"
	"epsnet/tensor"
)

// Dropout zeroes each element with probability P in Train mode and scales the
// survivors by 1/(1-P). In Eval mode it is the identity.
type Dropout struct {
	P   float64
	rng *rand.Rand
}

// NewDropout validates p and binds the mask source. A nil rng is seeded with
// zero.
func NewDropout(p float64, rng *rand.Rand) (*Dropout, error) {
	if p < 0 || p >= 1 {
		return nil, fmt.Errorf("dropout probability %g outside [0, 1)", p)
	}
	if rng == nil {
		rng = nn.NewRand(0)
	}
	return &Dropout{P: p, rng: rng}, nil
}

// Forward returns x unchanged in Eval mode and a masked copy in Train mode.
func (d *Dropout) Forward(x *tensor.Tensor, mode nn.Mode) (*tensor.Tensor, error) {
	if mode != nn.Train || d.P == 0 {
		return x, nil
	}
	keep := 1 - d.P
	out := tensor.New(x.Shape...)
	for i, v := range x.Data {
		if d.rng.Float64() < keep {
			out.Data[i] = v / keep
		}
	}
	return out, nil
}

// Tag identifies the layer.
func (d *Dropout) Tag() string { return fmt.Sprintf("Dropout_%g", d.P) }
