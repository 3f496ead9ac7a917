// epsnet-infer: plaintext inference with seeded random weights
package main

import (
	"fmt"
	"math/rand"
	"time"

	"epsnet/config"
	"epsnet/internal/cli"
	"epsnet/models"
	"epsnet/nn"
	"epsnet/tensor"
	"epsnet/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// model is the common surface of the head and split models.
type model interface {
	Forward(x *tensor.Tensor, mode nn.Mode) (*tensor.Tensor, error)
	Params() []nn.Param
}

func main() {
	root, opts := cli.NewRootCommand("epsnet-infer", "Build the configured model and run an Eval-mode forward pass on synthetic input")
	var (
		describe  bool
		modelName string
		batch     int
	)
	root.Flags().BoolVar(&describe, "describe", false, "print the layer stack and spatial trace only")
	root.Flags().StringVarP(&modelName, "model", "m", "", "model override (head, split, fusion)")
	root.Flags().IntVarP(&batch, "batch", "b", 0, "batch size override")
	root.RunE = func(cmd *cobra.Command, _ []string) error {
		env, err := opts.Setup()
		if err != nil {
			return err
		}
		defer env.Logger.Sync()
		cfg := env.Config
		if modelName != "" {
			cfg.Model = modelName
		}
		if batch > 0 {
			cfg.BatchSize = batch
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return run(cfg, env.Logger, describe)
	}
	cli.Execute(root)
}

func run(cfg *config.Config, logger *zap.Logger, describe bool) error {
	var stats utils.TimingStats
	total := time.Now()
	rng := nn.NewRand(cfg.Seed)

	start := time.Now()
	switch cfg.Model {
	case config.ModelHead:
		h, err := models.NewRegressionHead(cfg.Head, rng)
		if err != nil {
			return err
		}
		stats.ModelInitTime = time.Since(start)
		fmt.Printf("model: %s\n  %s\n", h.Tag(), h.Layers().Tag())
		return forward(h, randomBatch(rng, cfg.BatchSize, cfg.Head.InputDim), describe, logger, &stats, total)

	case config.ModelSplit:
		s, err := models.NewSplitRegressionHead(cfg.SplitHead, rng)
		if err != nil {
			return err
		}
		stats.ModelInitTime = time.Since(start)
		fmt.Printf("model: SplitRegressionHead input=%d output=%d\n", cfg.SplitHead.InputDim(), cfg.SplitHead.OutputDim())
		fmt.Printf("  ep:  %s\n  epp: %s\n", s.EP.Layers().Tag(), s.EPP.Layers().Tag())
		return forward(s, randomBatch(rng, cfg.BatchSize, cfg.SplitHead.InputDim()), describe, logger, &stats, total)

	case config.ModelFusion:
		dims, err := models.SpatialDims(cfg.Fusion.EncoderConfig)
		if err != nil {
			return err
		}
		f, err := models.NewFusionRegressor(cfg.Fusion, rng)
		if err != nil {
			return err
		}
		stats.ModelInitTime = time.Since(start)
		fmt.Printf("model: FusionRegressor output=%d\n", cfg.Fusion.OutputDim)
		fmt.Printf("  spatial trace: %v\n  flatten width: %d\n", dims, f.Encoder.FlattenWidth())
		fmt.Printf("  encoder: %s\n  head:    %s\n", f.Encoder.Layers().Tag(), f.Head.Layers().Tag())
		fmt.Printf("  parameters: %d\n", nn.NumParams(f.Params()))
		if describe {
			return nil
		}
		b, c := cfg.BatchSize, cfg.Fusion
		x := randomBatch(rng, b, c.InputCh1, c.ImageDim, c.ImageDim)
		y := randomBatch(rng, b, c.FeatureDim())
		start = time.Now()
		out, err := f.Forward(x, y, nn.Eval)
		if err != nil {
			return err
		}
		stats.ForwardTime = time.Since(start)
		report(out, logger, &stats, total)
		return nil
	}
	return fmt.Errorf("unknown model %q", cfg.Model)
}

func forward(m model, x *tensor.Tensor, describe bool, logger *zap.Logger, stats *utils.TimingStats, total time.Time) error {
	fmt.Printf("  parameters: %d\n", nn.NumParams(m.Params()))
	if describe {
		return nil
	}
	start := time.Now()
	out, err := m.Forward(x, nn.Eval)
	if err != nil {
		return err
	}
	stats.ForwardTime = time.Since(start)
	report(out, logger, stats, total)
	return nil
}

func report(out *tensor.Tensor, logger *zap.Logger, stats *utils.TimingStats, total time.Time) {
	fmt.Printf("output shape: %v\n", out.Shape)
	fmt.Printf("first row: %.5f\n", out.Row(0))
	stats.TotalTime = time.Since(total)
	logger.Info("inference complete",
		zap.Ints("shape", out.Shape),
		zap.Duration("forward", stats.ForwardTime),
	)
	utils.PrintTimingStats(stats, out.Shape[0])
}

func randomBatch(rng *rand.Rand, shape ...int) *tensor.Tensor {
	t := tensor.New(shape...)
	for i := range t.Data {
		t.Data[i] = rng.Float64()*2 - 1
	}
	return t
}
