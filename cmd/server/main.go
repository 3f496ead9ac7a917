// epsnet-server: serves the encrypted first layer of a regression head
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"epsnet/internal/cli"
	"epsnet/models"
	"epsnet/nn"
	"epsnet/split"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func main() {
	root, opts := cli.NewRootCommand("epsnet-server", "Serve split inference for the first layer of the configured regression head")
	var addr, metricsAddr string
	root.Flags().StringVar(&addr, "addr", "", "listen address override")
	root.Flags().StringVar(&metricsAddr, "metrics-addr", "", "metrics listen address override (empty string in config disables)")
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
		if metricsAddr != "" {
			cfg.Server.MetricsAddr = metricsAddr
		}

		head, err := models.NewRegressionHead(cfg.Head, nn.NewRand(cfg.Seed))
		if err != nil {
			return err
		}
		first, _ := head.Split()

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		srv := split.NewServer(first, logger, split.NewMetrics(reg))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var metricsSrv *http.Server
		if cfg.Server.MetricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			metricsSrv = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				logger.Info("metrics listening", zap.String("addr", cfg.Server.MetricsAddr))
				if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server failed", zap.Error(err))
				}
			}()
		}

		ln, err := net.Listen("tcp", cfg.Server.Addr)
		if err != nil {
			return err
		}
		logger.Info("split server listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("layer", first.Tag()),
		)
		err = srv.ListenAndServe(ctx, ln)

		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			metricsSrv.Shutdown(shutdownCtx)
		}
		logger.Info("split server stopped")
		return err
	}
	cli.Execute(root)
}
