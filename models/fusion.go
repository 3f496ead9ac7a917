package models

import (
	"fmt"
	"math/rand"

	"epsnet/nn"
	"epsnet/tensor"
)

// FusionRegressor embeds an image, appends the tabular features and regresses
// the result: Head(concat(Encoder(x), y)). The output is (B, OutputDim).
type FusionRegressor struct {
	cfg FusionConfig

	Encoder *ImageEncoder
	Head    *RegressionHead
}

// NewFusionRegressor builds the encoder, then the head, from rng. A nil rng
// is seeded with zero.
func NewFusionRegressor(cfg FusionConfig, rng *rand.Rand) (*FusionRegressor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = nn.NewRand(0)
	}
	enc, err := NewImageEncoder(cfg.EncoderConfig, rng)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	head, err := NewRegressionHead(cfg.HeadConfig(), rng)
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}
	return &FusionRegressor{cfg: cfg, Encoder: enc, Head: head}, nil
}

// Forward runs x (B, InputCh1, ImageDim, ImageDim) and y
// (B, DescriptorDim + InputSplitDim) through the model.
func (f *FusionRegressor) Forward(x, y *tensor.Tensor, mode nn.Mode) (*tensor.Tensor, error) {
	if y.Rank() != 2 || y.Shape[1] != f.cfg.FeatureDim() {
		return nil, fmt.Errorf("%w: fusion features expect (batch, %d), got %v", tensor.ErrShape, f.cfg.FeatureDim(), y.Shape)
	}
	if x.Rank() == 0 || x.Shape[0] != y.Shape[0] {
		return nil, fmt.Errorf("%w: image batch %v and feature batch %v differ", tensor.ErrShape, x.Shape, y.Shape)
	}
	emb, err := f.Encoder.Forward(x, mode)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	merged, err := tensor.Concat(emb, y)
	if err != nil {
		return nil, err
	}
	out, err := f.Head.Forward(merged, mode)
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}
	return out, nil
}

// Config returns the configuration the model was built with.
func (f *FusionRegressor) Config() FusionConfig { return f.cfg }

// Params lists encoder tensors under "encoder." and head tensors under
// "head.".
func (f *FusionRegressor) Params() []nn.Param {
	var ps []nn.Param
	for _, p := range f.Encoder.Params() {
		ps = append(ps, nn.Param{Name: "encoder." + p.Name, Value: p.Value})
	}
	for _, p := range f.Head.Params() {
		ps = append(ps, nn.Param{Name: "head." + p.Name, Value: p.Value})
	}
	return ps
}
