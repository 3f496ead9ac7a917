package utils

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDurationUS(t *testing.T) {
	d := 1234*time.Microsecond + 567*time.Nanosecond
	got := DurationUS(d)
	if math.Abs(got-1234.567) > 0.001 {
		t.Fatalf("want 1234.567µs, got %.3f", got)
	}
}

func TestTrack(t *testing.T) {
	var d time.Duration
	Track(time.Now().Add(-time.Second), &d)
	assert.GreaterOrEqual(t, d, time.Second)
}

func TestPrintTimingStats(t *testing.T) {
	var buf bytes.Buffer
	oldOut, oldVerbose := Output, Verbose
	defer func() { Output, Verbose = oldOut, oldVerbose }()
	Output = &buf

	stats := &TimingStats{TotalTime: 4 * time.Second, ServerTime: time.Second}
	PrintTimingStats(stats, 2)
	assert.Contains(t, buf.String(), "Server linear: 1s (25.0%)")
	assert.Contains(t, buf.String(), "Average server time: 500ms")

	buf.Reset()
	Verbose = false
	PrintTimingStats(stats, 2)
	assert.Empty(t, buf.String())

	// zero samples and zero total do not divide by zero
	Verbose = true
	PrintTimingStats(&TimingStats{}, 0)
	assert.Contains(t, buf.String(), "(0.0%)")
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := NewLogger(LogConfig{Level: "debug", Format: format})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	}
	logger, err := NewLogger(LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger(LogConfig{OutputPaths: []string{"/nonexistent-dir/x/y.log"}})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
	assert.NotNil(t, OrNop(nil))
}
