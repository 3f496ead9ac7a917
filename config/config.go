// Package config centralizes the hyperparameters of every model, the CKKS
// parameter set and the split-inference service settings.
package config

import (
	"fmt"

	"epsnet/core/ckkswrapper"
	"epsnet/models"
	"epsnet/utils"
)

// Model names accepted by Config.Model.
const (
	ModelHead   = "head"
	ModelSplit  = "split"
	ModelFusion = "fusion"
)

const (
	DefaultServerAddr  = "127.0.0.1:7070"
	DefaultMetricsAddr = "127.0.0.1:9090"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"
)

// Config is the root configuration.
type Config struct {
	Model     string                 `mapstructure:"model" json:"model"`
	Seed      int64                  `mapstructure:"seed" json:"seed"`
	BatchSize int                    `mapstructure:"batch_size" json:"batch_size"`
	Head      models.HeadConfig      `mapstructure:"head" json:"head"`
	SplitHead models.SplitHeadConfig `mapstructure:"split_head" json:"split_head"`
	Fusion    models.FusionConfig    `mapstructure:"fusion" json:"fusion"`
	HE        ckkswrapper.Literal    `mapstructure:"he" json:"he"`
	Server    ServerConfig           `mapstructure:"server" json:"server"`
	Log       utils.LogConfig        `mapstructure:"log" json:"log"`
}

// ServerConfig holds the split-inference listener settings.
type ServerConfig struct {
	Addr        string `mapstructure:"addr" json:"addr"`
	MetricsAddr string `mapstructure:"metrics_addr" json:"metrics_addr"`
}

// Default returns the configuration every unset key falls back to.
func Default() *Config {
	return &Config{
		Model:     ModelHead,
		Seed:      1,
		BatchSize: 4,
		Head:      models.DefaultHeadConfig(),
		SplitHead: models.DefaultSplitHeadConfig(),
		Fusion:    models.DefaultFusionConfig(),
		HE:        ckkswrapper.DefaultLiteral(),
		Server: ServerConfig{
			Addr:        DefaultServerAddr,
			MetricsAddr: DefaultMetricsAddr,
		},
		Log: utils.LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	switch c.Model {
	case ModelHead, ModelSplit, ModelFusion:
	default:
		return fmt.Errorf("config: model %q is invalid; expected head|split|fusion", c.Model)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch_size must be ≥ 1, got %d", c.BatchSize)
	}
	if err := c.Head.Validate(); err != nil {
		return fmt.Errorf("config: head: %w", err)
	}
	if err := c.SplitHead.Validate(); err != nil {
		return fmt.Errorf("config: split_head: %w", err)
	}
	if err := c.Fusion.Validate(); err != nil {
		return fmt.Errorf("config: fusion: %w", err)
	}
	if c.HE.LogN < 10 || c.HE.LogN > 16 {
		return fmt.Errorf("config: he.log_n %d is out of range [10, 16]", c.HE.LogN)
	}
	// one level for the weight product and one for the slot mask
	if len(c.HE.LogQ) < 3 {
		return fmt.Errorf("config: he.log_q needs at least 3 moduli, got %d", len(c.HE.LogQ))
	}
	if len(c.HE.LogP) < 1 {
		return fmt.Errorf("config: he.log_p is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr is required")
	}
	return nil
}
