package nn

import (
	"fmt"

	"epsnet/tensor"
)

// Mode selects training-mode or inference-mode behaviour for layers whose
// forward pass differs between the two (dropout, batch normalization).
type Mode int

const (
	// Eval is inference mode: dropout is the identity and batch
	// normalization uses its frozen running statistics.
	Eval Mode = iota
	// Train is training mode: dropout is active and batch normalization
	// normalizes with batch statistics while updating its running estimates.
	Train
)

func (m Mode) String() string {
	switch m {
	case Eval:
		return "eval"
	case Train:
		return "train"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Module defines a single layer/unit in the network.
type Module interface {
	Forward(x *tensor.Tensor, mode Mode) (*tensor.Tensor, error)
	Tag() string
}

// Param is a named learnable tensor owned by a module.
type Param struct {
	Name  string
	Value *tensor.Tensor
}

// Parameterized is implemented by modules that own learnable weights.
type Parameterized interface {
	Params() []Param
}

// Sequential chains multiple Modules in order.
type Sequential struct {
	Layers []Module
}

// NewSequential builds a Sequential from the given layers.
func NewSequential(layers ...Module) *Sequential {
	return &Sequential{Layers: layers}
}

// Forward applies each layer in sequence.
func (s *Sequential) Forward(x *tensor.Tensor, mode Mode) (*tensor.Tensor, error) {
	out := x
	for i, layer := range s.Layers {
		var err error
		out, err = layer.Forward(out, mode)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, layer.Tag(), err)
		}
	}
	return out, nil
}

// Tag lists the tags of the chained layers.
func (s *Sequential) Tag() string {
	tag := "Sequential["
	for i, layer := range s.Layers {
		if i > 0 {
			tag += " "
		}
		tag += layer.Tag()
	}
	return tag + "]"
}

// Params collects parameters of every Parameterized layer, prefixed with the
// layer index the way PyTorch names nn.Sequential children.
func (s *Sequential) Params() []Param {
	var ps []Param
	for i, layer := range s.Layers {
		p, ok := layer.(Parameterized)
		if !ok {
			continue
		}
		for _, param := range p.Params() {
			ps = append(ps, Param{Name: fmt.Sprintf("%d.%s", i, param.Name), Value: param.Value})
		}
	}
	return ps
}

// NumParams is the total element count over params.
func NumParams(ps []Param) int {
	n := 0
	for _, p := range ps {
		n += len(p.Value.Data)
	}
	return n
}
