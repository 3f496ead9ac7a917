// Package models composes the layer primitives into the regression
// networks: a fully-connected RegressionHead, a SplitRegressionHead routing
// two overlapping feature segments through independent heads, a
// convolutional ImageEncoder and a FusionRegressor joining the two paths.
package models

import (
	"errors"
	"fmt"
	"sort"
)

// ErrConfig is wrapped by every invalid hyperparameter reported at
// construction.
var ErrConfig = errors.New("invalid model configuration")

// HeadConfig sizes a RegressionHead.
type HeadConfig struct {
	InputDim  int     `mapstructure:"input_dim" json:"input_dim"`
	Hidden1   int     `mapstructure:"hidden_1" json:"hidden_1"`
	Hidden2   int     `mapstructure:"hidden_2" json:"hidden_2"`
	OutputDim int     `mapstructure:"output_dim" json:"output_dim"`
	Dropout   float64 `mapstructure:"dropout" json:"dropout"`
}

// DefaultHeadConfig is the 36→64→64→30 head.
func DefaultHeadConfig() HeadConfig {
	return HeadConfig{InputDim: 36, Hidden1: 64, Hidden2: 64, OutputDim: 30, Dropout: 0.2}
}

// Validate checks that every width is positive and the dropout probability
// lies in [0, 1).
func (c HeadConfig) Validate() error {
	if err := positive(map[string]int{
		"input_dim":  c.InputDim,
		"hidden_1":   c.Hidden1,
		"hidden_2":   c.Hidden2,
		"output_dim": c.OutputDim,
	}); err != nil {
		return err
	}
	return validDropout(c.Dropout)
}

// SplitHeadConfig sizes a SplitRegressionHead. Inputs are laid out as
// [descriptor | middle | tail] with the middle and tail segments both
// InputSplitDim wide.
type SplitHeadConfig struct {
	DescriptorDim  int     `mapstructure:"descriptor_dim" json:"descriptor_dim"`
	InputSplitDim  int     `mapstructure:"input_split_dim" json:"input_split_dim"`
	Hidden1        int     `mapstructure:"hidden_1" json:"hidden_1"`
	Hidden2        int     `mapstructure:"hidden_2" json:"hidden_2"`
	OutputSplitDim int     `mapstructure:"output_split_dim" json:"output_split_dim"`
	Dropout        float64 `mapstructure:"dropout" json:"dropout"`
}

// DefaultSplitHeadConfig is two 36→128→128→30 heads over a 66-wide input.
func DefaultSplitHeadConfig() SplitHeadConfig {
	return SplitHeadConfig{DescriptorDim: 6, InputSplitDim: 30, Hidden1: 128, Hidden2: 128, OutputSplitDim: 30, Dropout: 0.2}
}

// InputDim is the exact input width, descriptor plus two split segments.
func (c SplitHeadConfig) InputDim() int { return c.DescriptorDim + 2*c.InputSplitDim }

// OutputDim is the width of the concatenated [ep, epp] output.
func (c SplitHeadConfig) OutputDim() int { return 2 * c.OutputSplitDim }

// HeadConfig is the configuration shared by the ep and epp heads.
func (c SplitHeadConfig) HeadConfig() HeadConfig {
	return HeadConfig{
		InputDim:  c.DescriptorDim + c.InputSplitDim,
		Hidden1:   c.Hidden1,
		Hidden2:   c.Hidden2,
		OutputDim: c.OutputSplitDim,
		Dropout:   c.Dropout,
	}
}

// Validate checks widths and dropout.
func (c SplitHeadConfig) Validate() error {
	if err := positive(map[string]int{
		"descriptor_dim":   c.DescriptorDim,
		"input_split_dim":  c.InputSplitDim,
		"hidden_1":         c.Hidden1,
		"hidden_2":         c.Hidden2,
		"output_split_dim": c.OutputSplitDim,
	}); err != nil {
		return err
	}
	return validDropout(c.Dropout)
}

// EncoderConfig sizes an ImageEncoder. Every stage uses the same kernel,
// stride, padding and pool size.
type EncoderConfig struct {
	ConvKernelSize int `mapstructure:"conv_kernel_size" json:"conv_kernel_size"`
	Stride         int `mapstructure:"stride" json:"stride"`
	Padding        int `mapstructure:"padding" json:"padding"`
	InputCh1       int `mapstructure:"input_ch_1" json:"input_ch_1"`
	OutputCh1      int `mapstructure:"output_ch_1" json:"output_ch_1"`
	OutputCh2      int `mapstructure:"output_ch_2" json:"output_ch_2"`
	OutputCh3      int `mapstructure:"output_ch_3" json:"output_ch_3"`
	PoolKernelSize int `mapstructure:"pool_kernel_size" json:"pool_kernel_size"`
	ImageDim       int `mapstructure:"image_dim" json:"image_dim"`
	EmbeddingDim   int `mapstructure:"embedding_dim" json:"embedding_dim"`
}

// DefaultEncoderConfig is the 1→16→32→64 encoder over 500×500 images.
func DefaultEncoderConfig() EncoderConfig {
	return EncoderConfig{
		ConvKernelSize: 3,
		Stride:         1,
		Padding:        1,
		InputCh1:       1,
		OutputCh1:      16,
		OutputCh2:      32,
		OutputCh3:      64,
		PoolKernelSize: 2,
		ImageDim:       500,
		EmbeddingDim:   32,
	}
}

// Channels is the channel progression input→stage1→stage2→stage3.
func (c EncoderConfig) Channels() []int {
	return []int{c.InputCh1, c.OutputCh1, c.OutputCh2, c.OutputCh3}
}

// Validate checks the hyperparameters and that the spatial size survives all
// three stages.
func (c EncoderConfig) Validate() error {
	if err := positive(map[string]int{
		"conv_kernel_size": c.ConvKernelSize,
		"stride":           c.Stride,
		"input_ch_1":       c.InputCh1,
		"output_ch_1":      c.OutputCh1,
		"output_ch_2":      c.OutputCh2,
		"output_ch_3":      c.OutputCh3,
		"pool_kernel_size": c.PoolKernelSize,
		"image_dim":        c.ImageDim,
		"embedding_dim":    c.EmbeddingDim,
	}); err != nil {
		return err
	}
	if c.Padding < 0 {
		return fmt.Errorf("%w: padding must be non-negative, got %d", ErrConfig, c.Padding)
	}
	_, err := SpatialDims(c)
	return err
}

// FusionConfig sizes a FusionRegressor. The encoder hyperparameters are
// embedded so the fusion model and a standalone encoder share one set of
// defaults.
type FusionConfig struct {
	EncoderConfig `mapstructure:",squash"`

	DescriptorDim int     `mapstructure:"descriptor_dim" json:"descriptor_dim"`
	InputSplitDim int     `mapstructure:"input_split_dim" json:"input_split_dim"`
	Hidden1       int     `mapstructure:"hidden_1" json:"hidden_1"`
	Hidden2       int     `mapstructure:"hidden_2" json:"hidden_2"`
	OutputDim     int     `mapstructure:"output_dim" json:"output_dim"`
	Dropout       float64 `mapstructure:"dropout" json:"dropout"`
}

// DefaultFusionConfig pairs DefaultEncoderConfig with a 68→64→64→30 head.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		EncoderConfig: DefaultEncoderConfig(),
		DescriptorDim: 6,
		InputSplitDim: 30,
		Hidden1:       64,
		Hidden2:       64,
		OutputDim:     30,
		Dropout:       0.2,
	}
}

// FeatureDim is the width of the tabular input y.
func (c FusionConfig) FeatureDim() int { return c.DescriptorDim + c.InputSplitDim }

// HeadConfig is the configuration of the regression head applied to the
// concatenated [embedding, y] vector.
func (c FusionConfig) HeadConfig() HeadConfig {
	return HeadConfig{
		InputDim:  c.EmbeddingDim + c.FeatureDim(),
		Hidden1:   c.Hidden1,
		Hidden2:   c.Hidden2,
		OutputDim: c.OutputDim,
		Dropout:   c.Dropout,
	}
}

// Validate checks the encoder and head hyperparameters.
func (c FusionConfig) Validate() error {
	if err := c.EncoderConfig.Validate(); err != nil {
		return err
	}
	if err := positive(map[string]int{
		"descriptor_dim":  c.DescriptorDim,
		"input_split_dim": c.InputSplitDim,
	}); err != nil {
		return err
	}
	return c.HeadConfig().Validate()
}

func positive(fields map[string]int) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v := fields[name]; v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrConfig, name, v)
		}
	}
	return nil
}

func validDropout(p float64) error {
	if p < 0 || p >= 1 {
		return fmt.Errorf("%w: dropout must be in [0, 1), got %g", ErrConfig, p)
	}
	return nil
}
