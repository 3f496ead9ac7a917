package layers

import (
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
	"go.uber.org/zap"
)

// WrappedEvaluator wraps a ckks.Evaluator to count operations
type WrappedEvaluator struct {
	eval *ckks.Evaluator

	// Operation counters
	RotateCount  int
	MulCount     int
	RescaleCount int
	AddCount     int
}

// NewWrappedEvaluator creates a new wrapped evaluator
func NewWrappedEvaluator(eval *ckks.Evaluator) *WrappedEvaluator {
	return &WrappedEvaluator{
		eval: eval,
	}
}

// ResetCounters resets all operation counters to zero
func (w *WrappedEvaluator) ResetCounters() {
	w.RotateCount = 0
	w.MulCount = 0
	w.RescaleCount = 0
	w.AddCount = 0
}

// Counts returns the counters keyed by operation name.
func (w *WrappedEvaluator) Counts() map[string]int {
	return map[string]int{
		"rotate":  w.RotateCount,
		"mul":     w.MulCount,
		"rescale": w.RescaleCount,
		"add":     w.AddCount,
	}
}

// LogCounters writes the current operation counts at debug level.
func (w *WrappedEvaluator) LogCounters(logger *zap.Logger, phase string) {
	logger.Debug("he op counts",
		zap.String("phase", phase),
		zap.Int("rotate", w.RotateCount),
		zap.Int("mul", w.MulCount),
		zap.Int("rescale", w.RescaleCount),
		zap.Int("add", w.AddCount),
	)
}

// RotateNew wraps eval.RotateNew and counts rotations
func (w *WrappedEvaluator) RotateNew(ct *rlwe.Ciphertext, krot int) (*rlwe.Ciphertext, error) {
	w.RotateCount++
	return w.eval.RotateNew(ct, krot)
}

// MulNew wraps eval.MulNew and counts multiplications
func (w *WrappedEvaluator) MulNew(ct *rlwe.Ciphertext, pt *rlwe.Plaintext) (*rlwe.Ciphertext, error) {
	w.MulCount++
	return w.eval.MulNew(ct, pt)
}

// Rescale wraps eval.Rescale and counts rescales
func (w *WrappedEvaluator) Rescale(ct *rlwe.Ciphertext, ctOut *rlwe.Ciphertext) error {
	w.RescaleCount++
	return w.eval.Rescale(ct, ctOut)
}

// AddNew wraps eval.AddNew and counts additions
func (w *WrappedEvaluator) AddNew(ct1, ct2 *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	w.AddCount++
	return w.eval.AddNew(ct1, ct2)
}

// AddPlainNew adds a plaintext and counts it as an addition
func (w *WrappedEvaluator) AddPlainNew(ct *rlwe.Ciphertext, pt *rlwe.Plaintext) (*rlwe.Ciphertext, error) {
	w.AddCount++
	return w.eval.AddNew(ct, pt)
}
