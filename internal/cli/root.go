// Package cli holds the flags and initialization shared by the epsnet
// commands.
package cli

import (
	"fmt"
	"os"

	"epsnet/config"
	"epsnet/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// Options holds the global flags.
type Options struct {
	ConfigPath string
	LogLevel   string
	Verbose    bool
}

// Env carries the initialized configuration and logger into a command.
type Env struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewRootCommand creates a root command with the global flags registered.
func NewRootCommand(use, short string) (*cobra.Command, *Options) {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Version:       fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: EPSNET_* environment only)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "print timing tables")
	return cmd, opts
}

// Setup loads the configuration, applies flag overrides and builds the
// logger.
func (o *Options) Setup() (*Env, error) {
	cfg, err := config.LoadOrEnv(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	logger, err := utils.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	utils.Verbose = o.Verbose
	return &Env{Config: cfg, Logger: logger}, nil
}

// Execute runs cmd and exits non-zero on error.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
