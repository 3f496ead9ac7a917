package models

import (
	"fmt"
	"math/rand"

	"epsnet/nn"
	"epsnet/tensor"
)

// SplitRegressionHead routes two overlapping views of its input through
// independent heads. Given x = [descriptor | middle | tail], EP sees
// [descriptor | middle] and EPP sees [descriptor | tail]; the descriptor is
// copied into both. The output is [EP(x_ep) | EPP(x_epp)].
type SplitRegressionHead struct {
	cfg SplitHeadConfig

	EP  *RegressionHead
	EPP *RegressionHead
}

// NewSplitRegressionHead builds both heads from rng, EP first. A nil rng is
// seeded with zero.
func NewSplitRegressionHead(cfg SplitHeadConfig, rng *rand.Rand) (*SplitRegressionHead, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = nn.NewRand(0)
	}
	ep, err := NewRegressionHead(cfg.HeadConfig(), rng)
	if err != nil {
		return nil, fmt.Errorf("ep head: %w", err)
	}
	epp, err := NewRegressionHead(cfg.HeadConfig(), rng)
	if err != nil {
		return nil, fmt.Errorf("epp head: %w", err)
	}
	return &SplitRegressionHead{cfg: cfg, EP: ep, EPP: epp}, nil
}

// Route slices x into the EP and EPP inputs. x must be exactly
// (B, DescriptorDim + 2·InputSplitDim).
func (s *SplitRegressionHead) Route(x *tensor.Tensor) (xEP, xEPP *tensor.Tensor, err error) {
	if x.Rank() != 2 || x.Shape[1] != s.cfg.InputDim() {
		return nil, nil, fmt.Errorf("%w: split head expects (batch, %d), got %v", tensor.ErrShape, s.cfg.InputDim(), x.Shape)
	}
	d, sp := s.cfg.DescriptorDim, s.cfg.InputSplitDim
	if xEP, err = tensor.Narrow(x, 0, d+sp); err != nil {
		return nil, nil, err
	}
	desc, err := tensor.Narrow(x, 0, d)
	if err != nil {
		return nil, nil, err
	}
	tail, err := tensor.Narrow(x, d+sp, d+2*sp)
	if err != nil {
		return nil, nil, err
	}
	if xEPP, err = tensor.Concat(desc, tail); err != nil {
		return nil, nil, err
	}
	return xEP, xEPP, nil
}

// Forward maps (B, DescriptorDim + 2·InputSplitDim) to
// (B, 2·OutputSplitDim).
func (s *SplitRegressionHead) Forward(x *tensor.Tensor, mode nn.Mode) (*tensor.Tensor, error) {
	xEP, xEPP, err := s.Route(x)
	if err != nil {
		return nil, err
	}
	yEP, err := s.EP.Forward(xEP, mode)
	if err != nil {
		return nil, fmt.Errorf("ep: %w", err)
	}
	yEPP, err := s.EPP.Forward(xEPP, mode)
	if err != nil {
		return nil, fmt.Errorf("epp: %w", err)
	}
	return tensor.Concat(yEP, yEPP)
}

// Config returns the configuration the model was built with.
func (s *SplitRegressionHead) Config() SplitHeadConfig { return s.cfg }

// Params lists both heads' tensors under "ep." and "epp." prefixes.
func (s *SplitRegressionHead) Params() []nn.Param {
	var ps []nn.Param
	for _, p := range s.EP.Params() {
		ps = append(ps, nn.Param{Name: "ep." + p.Name, Value: p.Value})
	}
	for _, p := range s.EPP.Params() {
		ps = append(ps, nn.Param{Name: "epp." + p.Name, Value: p.Value})
	}
	return ps
}
