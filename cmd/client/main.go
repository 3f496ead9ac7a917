// epsnet-client: encrypted split inference against epsnet-server
package main

import (
	"fmt"
	"net"
	"time"

	"epsnet/core/ckkswrapper"
	"epsnet/internal/cli"
	"epsnet/models"
	"epsnet/nn"
	"epsnet/split"
	"epsnet/tensor"
	"epsnet/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const verifyTolerance = 1e-3

func main() {
	root, opts := cli.NewRootCommand("epsnet-client", "Run encrypted split inference on synthetic descriptor vectors")
	var (
		addr    string
		samples int
		verify  bool
	)
	root.Flags().StringVar(&addr, "addr", "", "server address override")
	root.Flags().IntVarP(&samples, "samples", "n", 0, "number of samples (default: batch_size)")
	root.Flags().BoolVar(&verify, "verify", false, "compare against the plaintext forward pass")
	root.RunE = func(cmd *cobra.Command, _ []string) error {
		env, err := opts.Setup()
		if err != nil {
			return err
		}
		logger := env.Logger
		defer logger.Sync()
		cfg := env.Config
		if addr != "" {
			cfg.Server.Addr = addr
		}
		if samples <= 0 {
			samples = cfg.BatchSize
		}

		var stats utils.TimingStats
		total := time.Now()

		start := time.Now()
		he, err := ckkswrapper.NewHeContextFromLiteral(cfg.HE)
		if err != nil {
			return err
		}
		stats.HEInitTime = time.Since(start)

		// the server builds the same head from the same seed and keeps the
		// first layer; this side only evaluates the tail
		start = time.Now()
		rng := nn.NewRand(cfg.Seed)
		head, err := models.NewRegressionHead(cfg.Head, rng)
		if err != nil {
			return err
		}
		_, tail := head.Split()
		stats.ModelInitTime = time.Since(start)

		conn, err := net.Dial("tcp", cfg.Server.Addr)
		if err != nil {
			return err
		}
		defer conn.Close()

		client, err := split.NewClient(conn, he, tail, logger)
		if err != nil {
			return err
		}
		defer client.Close()

		x := tensor.New(samples, cfg.Head.InputDim)
		for i := range x.Data {
			x.Data[i] = rng.Float64()*2 - 1
		}
		out, err := client.Predict(x)
		if err != nil {
			return err
		}
		fmt.Printf("output shape: %v\n", out.Shape)
		fmt.Printf("first row: %.5f\n", out.Row(0))

		if verify {
			start = time.Now()
			want, err := head.Forward(x, nn.Eval)
			if err != nil {
				return err
			}
			stats.ForwardTime = time.Since(start)
			diff, err := tensor.MaxAbsDiff(want, out)
			if err != nil {
				return err
			}
			fmt.Printf("max |encrypted - plaintext|: %.3e\n", diff)
			if diff > verifyTolerance {
				return fmt.Errorf("encrypted result deviates by %.3e (tolerance %.0e)", diff, verifyTolerance)
			}
			logger.Info("verified against plaintext", zap.Float64("max_abs_diff", diff))
		}

		stats.TotalTime = time.Since(total)
		stats.EncryptionTime = client.Stats.EncryptionTime
		stats.ServerTime = client.Stats.ServerTime
		stats.DecryptionTime = client.Stats.DecryptionTime
		stats.ClientTailTime = client.Stats.ClientTailTime
		stats.HEInitTime += client.Stats.HEInitTime
		utils.PrintTimingStats(&stats, samples)
		return nil
	}
	cli.Execute(root)
}
