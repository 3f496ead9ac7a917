package cli

import (
	"os"
	"path/filepath"
	"testing"

	"epsnet/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestRootFlags(t *testing.T) {
	cmd, opts := NewRootCommand("epsnet-test", "test")
	require.NoError(t, cmd.ParseFlags([]string{"--log-level", "debug", "-v", "-c", "x.yaml"}))
	assert.Equal(t, "debug", opts.LogLevel)
	assert.True(t, opts.Verbose)
	assert.Equal(t, "x.yaml", opts.ConfigPath)
}

func TestSetupAppliesOverrides(t *testing.T) {
	oldVerbose := utils.Verbose
	defer func() { utils.Verbose = oldVerbose }()

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: fusion\nlog:\n  level: error\n"), 0o600))

	opts := &Options{ConfigPath: path, LogLevel: "debug", Verbose: false}
	env, err := opts.Setup()
	require.NoError(t, err)
	assert.Equal(t, "fusion", env.Config.Model)
	assert.Equal(t, "debug", env.Config.Log.Level)
	assert.True(t, env.Logger.Core().Enabled(zapcore.DebugLevel))
	assert.False(t, utils.Verbose)
}

func TestSetupBadConfig(t *testing.T) {
	opts := &Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}
	_, err := opts.Setup()
	assert.Error(t, err)
}
