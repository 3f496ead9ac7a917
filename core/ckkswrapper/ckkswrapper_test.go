package ckkswrapper

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeContextRoundTrip(t *testing.T) {
	h := NewHeContextWithLogN(13)
	vals := []float64{3.1415926535, -2, 0.5}
	ct, err := h.EncryptVector(vals)
	if err != nil {
		t.Fatalf("encrypt error: %v", err)
	}
	got, err := h.DecryptVector(ct, len(vals))
	if err != nil {
		t.Fatalf("decrypt error: %v", err)
	}
	for i := range vals {
		if diff := got[i] - vals[i]; math.Abs(diff) > 1e-6 {
			t.Fatalf("roundtrip mismatch at %d: got %f, want %f", i, got[i], vals[i])
		}
	}

	kit := h.GenServerKit([]int{1, 2, -1})
	ct2, err := kit.Evaluator.MulNew(ct, ct)
	if err != nil {
		t.Fatalf("evaluator MulNew error: %v", err)
	}
	_ = ct2
}

func TestEncryptVectorTooLong(t *testing.T) {
	h := NewHeContextWithLogN(13)
	_, err := h.EncryptVector(make([]float64, h.Params.MaxSlots()+1))
	require.Error(t, err)
}

func TestServerKitFromSerializedKeys(t *testing.T) {
	h := NewHeContextWithLogN(13)
	clientKit := h.GenServerKit([]int{1, 2})
	evk, err := clientKit.MarshalEvaluationKeys()
	require.NoError(t, err)

	kit, err := NewServerKit(h.Literal, evk)
	require.NoError(t, err)

	ct, err := h.EncryptVector([]float64{1, 2, 3, 4})
	require.NoError(t, err)

	// rotate left by one on the rebuilt kit; slot 0 now holds the old slot 1
	rot, err := kit.GetWorkerEvaluator().RotateNew(ct, 1)
	require.NoError(t, err)
	got, err := h.DecryptVector(rot, 3)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got[0], 1e-5)
	assert.InDelta(t, 3.0, got[1], 1e-5)
	assert.InDelta(t, 4.0, got[2], 1e-5)
}

func TestGaloisElementsDedup(t *testing.T) {
	h := NewHeContextWithLogN(13)
	els := GaloisElements(h.Params, []int{0, 1, 1, 2, -1})
	assert.Len(t, els, 3)
	for i := 1; i < len(els); i++ {
		assert.Less(t, els[i-1], els[i])
	}
}

func TestLiteralForLogN(t *testing.T) {
	small := LiteralForLogN(13)
	assert.Len(t, small.LogQ, 3)
	big := DefaultLiteral()
	assert.Equal(t, 14, big.LogN)
	assert.Len(t, big.LogQ, 4)

	_, err := Literal{LogN: 13}.Parameters()
	require.Error(t, err)
}

func TestHasLevels(t *testing.T) {
	h := NewHeContextWithLogN(13)
	ct, err := h.EncryptVector([]float64{1})
	require.NoError(t, err)
	assert.True(t, HasLevels(ct, h.Params.MaxLevel()))
	assert.False(t, HasLevels(ct, h.Params.MaxLevel()+1))
}
