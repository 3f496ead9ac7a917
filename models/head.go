package models

import (
	"fmt"
	"math/rand"

	"epsnet/nn"
	"epsnet/nn/layers"
	"epsnet/tensor"
)

// RegressionHead is Linear → ReLU → Dropout → Linear → ReLU → Dropout →
// Linear.
type RegressionHead struct {
	cfg   HeadConfig
	first *layers.Linear
	seq   *nn.Sequential
}

// NewRegressionHead builds a head with weights drawn from rng. A nil rng is
// seeded with zero.
func NewRegressionHead(cfg HeadConfig, rng *rand.Rand) (*RegressionHead, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = nn.NewRand(0)
	}
	first := layers.NewLinear(cfg.InputDim, cfg.Hidden1, rng)
	drop1, err := layers.NewDropout(cfg.Dropout, rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	second := layers.NewLinear(cfg.Hidden1, cfg.Hidden2, rng)
	drop2, err := layers.NewDropout(cfg.Dropout, rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	out := layers.NewLinear(cfg.Hidden2, cfg.OutputDim, rng)

	return &RegressionHead{
		cfg:   cfg,
		first: first,
		seq: nn.NewSequential(
			first, layers.NewReLU(), drop1,
			second, layers.NewReLU(), drop2,
			out,
		),
	}, nil
}

// Forward maps (B, InputDim) to (B, OutputDim).
func (h *RegressionHead) Forward(x *tensor.Tensor, mode nn.Mode) (*tensor.Tensor, error) {
	if x.Rank() != 2 || x.Shape[1] != h.cfg.InputDim {
		return nil, fmt.Errorf("%w: regression head expects (batch, %d), got %v", tensor.ErrShape, h.cfg.InputDim, x.Shape)
	}
	return h.seq.Forward(x, mode)
}

// Layers is the underlying layer stack.
func (h *RegressionHead) Layers() *nn.Sequential { return h.seq }

// Config returns the configuration the head was built with.
func (h *RegressionHead) Config() HeadConfig { return h.cfg }

// Params lists the learnable tensors with PyTorch-style names.
func (h *RegressionHead) Params() []nn.Param { return h.seq.Params() }

// Split separates the first Linear layer from the rest of the stack. The
// returned values share weights with h.
func (h *RegressionHead) Split() (*layers.Linear, *nn.Sequential) {
	return h.first, nn.NewSequential(h.seq.Layers[1:]...)
}

// Tag identifies the model.
func (h *RegressionHead) Tag() string {
	return fmt.Sprintf("RegressionHead_%d_%d_%d_%d", h.cfg.InputDim, h.cfg.Hidden1, h.cfg.Hidden2, h.cfg.OutputDim)
}
