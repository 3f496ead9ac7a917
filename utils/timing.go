package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether timing statistics are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where timing statistics are printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// TimingStats holds timing information for the phases of an inference run.
type TimingStats struct {
	TotalTime      time.Duration
	HEInitTime     time.Duration
	ModelInitTime  time.Duration
	ForwardTime    time.Duration
	EncryptionTime time.Duration
	ServerTime     time.Duration
	DecryptionTime time.Duration
	ClientTailTime time.Duration
}

// Track adds the time elapsed since start to *d. Use as
// defer utils.Track(time.Now(), &stats.ForwardTime).
func Track(start time.Time, d *time.Duration) {
	*d += time.Since(start)
}

// PrintTimingStats prints detailed timing statistics over the given number
// of samples.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats, samples int) {
	if !Verbose {
		return
	}
	if samples <= 0 {
		samples = 1
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total time: %v\n", stats.TotalTime)
	fmt.Fprintf(Output, "Samples: %d\n", samples)
	fmt.Fprintln(Output, "\nBreakdown by operation:")
	printShare("HE initialization", stats.HEInitTime, stats.TotalTime)
	printShare("Model initialization", stats.ModelInitTime, stats.TotalTime)
	printShare("Plaintext forward", stats.ForwardTime, stats.TotalTime)
	printShare("Encryption", stats.EncryptionTime, stats.TotalTime)
	printShare("Server linear", stats.ServerTime, stats.TotalTime)
	printShare("Decryption", stats.DecryptionTime, stats.TotalTime)
	printShare("Client tail", stats.ClientTailTime, stats.TotalTime)
	fmt.Fprintln(Output, "\nPer sample:")
	fmt.Fprintf(Output, "  Average forward time: %v\n", stats.ForwardTime/time.Duration(samples))
	fmt.Fprintf(Output, "  Average encryption time: %v\n", stats.EncryptionTime/time.Duration(samples))
	fmt.Fprintf(Output, "  Average server time: %v\n", stats.ServerTime/time.Duration(samples))
	fmt.Fprintf(Output, "  Average decryption time: %v\n", stats.DecryptionTime/time.Duration(samples))
}

func printShare(name string, d, total time.Duration) {
	share := 0.0
	if total > 0 {
		share = float64(d) / float64(total) * 100
	}
	fmt.Fprintf(Output, "  %s: %v (%.1f%%)\n", name, d, share)
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
