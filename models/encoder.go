package models

import (
	"fmt"
	"math/rand"

	"epsnet/nn"
	"epsnet/nn/layers"
	"epsnet/tensor"
)

const encoderStages = 3

// SpatialDims traces the side length of the feature maps through the
// encoder: the input size followed by the size after each convolution and
// each pooling, seven values in all. For the defaults this is
// 500, 500, 250, 250, 125, 125, 62. A stage that collapses the map to
// nothing is a shape error.
func SpatialDims(cfg EncoderConfig) ([]int, error) {
	if cfg.Stride <= 0 || cfg.PoolKernelSize <= 0 {
		return nil, fmt.Errorf("%w: stride and pool kernel must be positive", ErrConfig)
	}
	h := cfg.ImageDim
	dims := []int{h}
	for stage := 1; stage <= encoderStages; stage++ {
		h = layers.ConvOutputSize(h, cfg.ConvKernelSize, cfg.Stride, cfg.Padding)
		if h < 1 {
			return nil, fmt.Errorf("%w: stage %d convolution leaves no spatial extent (image_dim %d)", tensor.ErrShape, stage, cfg.ImageDim)
		}
		dims = append(dims, h)
		h /= cfg.PoolKernelSize
		if h < 1 {
			return nil, fmt.Errorf("%w: stage %d pooling leaves no spatial extent (image_dim %d)", tensor.ErrShape, stage, cfg.ImageDim)
		}
		dims = append(dims, h)
	}
	return dims, nil
}

// FlattenWidth is OutputCh3 × H_final², the input width of the embedding
// layer.
func FlattenWidth(cfg EncoderConfig) (int, error) {
	dims, err := SpatialDims(cfg)
	if err != nil {
		return 0, err
	}
	h := dims[len(dims)-1]
	return cfg.OutputCh3 * h * h, nil
}

// ImageEncoder maps a (B, InputCh1, ImageDim, ImageDim) batch to a
// (B, EmbeddingDim) embedding through three
// Conv2D → BatchNorm2D → LeakyReLU → MaxPool2D stages, a flatten, a Linear
// layer and a final LeakyReLU.
type ImageEncoder struct {
	cfg          EncoderConfig
	flattenWidth int
	seq          *nn.Sequential
}

// NewImageEncoder validates cfg, fixes the flatten width and builds the
// layers with weights drawn from rng. A nil rng is seeded with zero.
func NewImageEncoder(cfg EncoderConfig, rng *rand.Rand) (*ImageEncoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	width, err := FlattenWidth(cfg)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		rng = nn.NewRand(0)
	}

	var stack []nn.Module
	ch := cfg.Channels()
	for stage := 0; stage < encoderStages; stage++ {
		conv, err := layers.NewConv2D(ch[stage], ch[stage+1], cfg.ConvKernelSize, cfg.Stride, cfg.Padding, rng)
		if err != nil {
			return nil, fmt.Errorf("%w: stage %d: %v", ErrConfig, stage+1, err)
		}
		pool, err := layers.NewMaxPool2D(cfg.PoolKernelSize)
		if err != nil {
			return nil, fmt.Errorf("%w: stage %d: %v", ErrConfig, stage+1, err)
		}
		stack = append(stack,
			conv,
			layers.NewBatchNorm2D(ch[stage+1]),
			layers.NewLeakyReLU(layers.DefaultLeakySlope),
			pool,
		)
	}
	stack = append(stack,
		layers.NewFlatten(),
		layers.NewLinear(width, cfg.EmbeddingDim, rng),
		layers.NewLeakyReLU(layers.DefaultLeakySlope),
	)

	return &ImageEncoder{cfg: cfg, flattenWidth: width, seq: nn.NewSequential(stack...)}, nil
}

// Forward embeds an image batch. Any shape other than
// (B, InputCh1, ImageDim, ImageDim) is rejected before the first layer runs.
func (e *ImageEncoder) Forward(x *tensor.Tensor, mode nn.Mode) (*tensor.Tensor, error) {
	c := e.cfg
	if x.Rank() != 4 || x.Shape[1] != c.InputCh1 || x.Shape[2] != c.ImageDim || x.Shape[3] != c.ImageDim {
		return nil, fmt.Errorf("%w: image encoder expects (batch, %d, %d, %d), got %v",
			tensor.ErrShape, c.InputCh1, c.ImageDim, c.ImageDim, x.Shape)
	}
	return e.seq.Forward(x, mode)
}

// FlattenWidth is the input width of the embedding layer.
func (e *ImageEncoder) FlattenWidth() int { return e.flattenWidth }

// Layers is the underlying layer stack.
func (e *ImageEncoder) Layers() *nn.Sequential { return e.seq }

// Config returns the configuration the encoder was built with.
func (e *ImageEncoder) Config() EncoderConfig { return e.cfg }

// Params lists the learnable tensors.
func (e *ImageEncoder) Params() []nn.Param { return e.seq.Params() }

// BatchNorms returns the normalization layers in stage order.
func (e *ImageEncoder) BatchNorms() []*layers.BatchNorm2D {
	var bns []*layers.BatchNorm2D
	for _, l := range e.seq.Layers {
		if bn, ok := l.(*layers.BatchNorm2D); ok {
			bns = append(bns, bn)
		}
	}
	return bns
}
