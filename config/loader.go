package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "EPSNET"

// newViper builds a Viper instance reading YAML, with EPSNET_ environment
// overrides where "." in a key becomes "_" (split_head.hidden_1 is
// EPSNET_SPLIT_HEAD_HIDDEN_1). Every key is registered with its default so
// environment variables apply even when no file mentions the key.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v, Default())
	return v
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("model", d.Model)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("batch_size", d.BatchSize)

	v.SetDefault("head.input_dim", d.Head.InputDim)
	v.SetDefault("head.hidden_1", d.Head.Hidden1)
	v.SetDefault("head.hidden_2", d.Head.Hidden2)
	v.SetDefault("head.output_dim", d.Head.OutputDim)
	v.SetDefault("head.dropout", d.Head.Dropout)

	v.SetDefault("split_head.descriptor_dim", d.SplitHead.DescriptorDim)
	v.SetDefault("split_head.input_split_dim", d.SplitHead.InputSplitDim)
	v.SetDefault("split_head.hidden_1", d.SplitHead.Hidden1)
	v.SetDefault("split_head.hidden_2", d.SplitHead.Hidden2)
	v.SetDefault("split_head.output_split_dim", d.SplitHead.OutputSplitDim)
	v.SetDefault("split_head.dropout", d.SplitHead.Dropout)

	f := d.Fusion
	v.SetDefault("fusion.conv_kernel_size", f.ConvKernelSize)
	v.SetDefault("fusion.stride", f.Stride)
	v.SetDefault("fusion.padding", f.Padding)
	v.SetDefault("fusion.input_ch_1", f.InputCh1)
	v.SetDefault("fusion.output_ch_1", f.OutputCh1)
	v.SetDefault("fusion.output_ch_2", f.OutputCh2)
	v.SetDefault("fusion.output_ch_3", f.OutputCh3)
	v.SetDefault("fusion.pool_kernel_size", f.PoolKernelSize)
	v.SetDefault("fusion.image_dim", f.ImageDim)
	v.SetDefault("fusion.embedding_dim", f.EmbeddingDim)
	v.SetDefault("fusion.descriptor_dim", f.DescriptorDim)
	v.SetDefault("fusion.input_split_dim", f.InputSplitDim)
	v.SetDefault("fusion.hidden_1", f.Hidden1)
	v.SetDefault("fusion.hidden_2", f.Hidden2)
	v.SetDefault("fusion.output_dim", f.OutputDim)
	v.SetDefault("fusion.dropout", f.Dropout)

	v.SetDefault("he.log_n", d.HE.LogN)
	v.SetDefault("he.log_q", d.HE.LogQ)
	v.SetDefault("he.log_p", d.HE.LogP)
	v.SetDefault("he.log_default_scale", d.HE.LogDefaultScale)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.metrics_addr", d.Server.MetricsAddr)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads the YAML file at configPath, merges EPSNET_* environment
// overrides over it and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}
	return unmarshalAndValidate(v)
}

// LoadFromEnv builds a Config from defaults and EPSNET_* environment
// variables alone.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndValidate(newViper())
}

// LoadOrEnv calls Load when configPath is set and LoadFromEnv otherwise.
func LoadOrEnv(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	return Load(configPath)
}

func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}
