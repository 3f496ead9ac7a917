// Package ckkswrapper bundles the CKKS parameters, keys, encoder and
// evaluators used for encrypted split inference.
//
// The client owns a HeContext (secret key included). The server only ever
// sees a ServerKit built from the client's public evaluation keys.
package ckkswrapper

import (
	"fmt"
	"sort"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// Literal is the wire/config form of the CKKS parameter set.
type Literal struct {
	LogN            int   `mapstructure:"log_n" json:"log_n"`
	LogQ            []int `mapstructure:"log_q" json:"log_q"`
	LogP            []int `mapstructure:"log_p" json:"log_p"`
	LogDefaultScale int   `mapstructure:"log_default_scale" json:"log_default_scale"`
}

// DefaultLiteral is a 128-bit secure parameter set with three usable levels.
func DefaultLiteral() Literal {
	return LiteralForLogN(14)
}

// LiteralForLogN picks a modulus chain sized for the ring degree. Rings of
// degree 2^13 and below get a two-level chain that stays under the 128-bit
// security bound for that degree.
func LiteralForLogN(logN int) Literal {
	if logN <= 13 {
		return Literal{LogN: logN, LogQ: []int{50, 40, 40}, LogP: []int{50}, LogDefaultScale: 40}
	}
	return Literal{LogN: logN, LogQ: []int{55, 45, 45, 45}, LogP: []int{55}, LogDefaultScale: 45}
}

// Parameters converts the literal into CKKS parameters.
func (l Literal) Parameters() (ckks.Parameters, error) {
	params, err := ckks.NewParametersFromLiteral(ckks.ParametersLiteral{
		LogN:            l.LogN,
		LogQ:            l.LogQ,
		LogP:            l.LogP,
		LogDefaultScale: l.LogDefaultScale,
	})
	if err != nil {
		return ckks.Parameters{}, fmt.Errorf("ckks parameters: %w", err)
	}
	return params, nil
}

// HeContext holds the client-side key material.
type HeContext struct {
	Literal   Literal
	Params    ckks.Parameters
	Encoder   *ckks.Encoder
	Encryptor *rlwe.Encryptor
	Decryptor *rlwe.Decryptor

	sk  *rlwe.SecretKey
	rlk *rlwe.RelinearizationKey
}

// ServerKit is what an evaluating party needs: parameters, an encoder and an
// evaluator holding the relinearization and rotation keys.
type ServerKit struct {
	Params    ckks.Parameters
	Encoder   *ckks.Encoder
	Evaluator *ckks.Evaluator
	Evk       *rlwe.MemEvaluationKeySet
}

// NewHeContext builds a context with DefaultLiteral. It panics on invalid
// parameters, which cannot happen for the built-in literal.
func NewHeContext() *HeContext {
	h, err := NewHeContextFromLiteral(DefaultLiteral())
	if err != nil {
		panic(err)
	}
	return h
}

// NewHeContextWithLogN builds a context with LiteralForLogN(logN).
func NewHeContextWithLogN(logN int) *HeContext {
	h, err := NewHeContextFromLiteral(LiteralForLogN(logN))
	if err != nil {
		panic(err)
	}
	return h
}

// NewHeContextFromLiteral generates a fresh key pair for lit.
func NewHeContextFromLiteral(lit Literal) (*HeContext, error) {
	params, err := lit.Parameters()
	if err != nil {
		return nil, err
	}
	kgen := rlwe.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	return &HeContext{
		Literal:   lit,
		Params:    params,
		Encoder:   ckks.NewEncoder(params),
		Encryptor: rlwe.NewEncryptor(params, pk),
		Decryptor: rlwe.NewDecryptor(params, sk),
		sk:        sk,
		rlk:       kgen.GenRelinearizationKeyNew(sk),
	}, nil
}

// GenServerKit generates rotation keys for the given slot rotations and
// returns an evaluation kit for them. Duplicate and zero rotations are
// ignored.
func (h *HeContext) GenServerKit(rots []int) *ServerKit {
	kgen := rlwe.NewKeyGenerator(h.Params)
	galEls := GaloisElements(h.Params, rots)
	galKeys := kgen.GenGaloisKeysNew(galEls, h.sk)
	evk := rlwe.NewMemEvaluationKeySet(h.rlk, galKeys...)
	return &ServerKit{
		Params:    h.Params,
		Encoder:   ckks.NewEncoder(h.Params),
		Evaluator: ckks.NewEvaluator(h.Params, evk),
		Evk:       evk,
	}
}

// GaloisElements maps slot rotations to their distinct Galois elements, in a
// stable order.
func GaloisElements(params ckks.Parameters, rots []int) []uint64 {
	seen := map[uint64]bool{}
	var els []uint64
	for _, r := range rots {
		if r == 0 {
			continue
		}
		el := params.GaloisElement(r)
		if seen[el] {
			continue
		}
		seen[el] = true
		els = append(els, el)
	}
	sort.Slice(els, func(i, j int) bool { return els[i] < els[j] })
	return els
}

// NewServerKit rebuilds an evaluation kit from a literal and serialized
// evaluation keys received from a client.
func NewServerKit(lit Literal, evkBytes []byte) (*ServerKit, error) {
	params, err := lit.Parameters()
	if err != nil {
		return nil, err
	}
	evk := new(rlwe.MemEvaluationKeySet)
	if err := evk.UnmarshalBinary(evkBytes); err != nil {
		return nil, fmt.Errorf("evaluation keys: %w", err)
	}
	return &ServerKit{
		Params:    params,
		Encoder:   ckks.NewEncoder(params),
		Evaluator: ckks.NewEvaluator(params, evk),
		Evk:       evk,
	}, nil
}

// MarshalEvaluationKeys serializes the kit's evaluation keys for transport.
func (k *ServerKit) MarshalEvaluationKeys() ([]byte, error) {
	return k.Evk.MarshalBinary()
}

// GetWorkerEvaluator returns an evaluator that shares keys with the kit but
// owns its own scratch buffers.
func (k *ServerKit) GetWorkerEvaluator() *ckks.Evaluator {
	return k.Evaluator.ShallowCopy()
}

// EncryptVector encodes vals into the first slots of a fresh ciphertext at
// the maximum level.
func (h *HeContext) EncryptVector(vals []float64) (*rlwe.Ciphertext, error) {
	if len(vals) > h.Params.MaxSlots() {
		return nil, fmt.Errorf("vector of length %d exceeds %d slots", len(vals), h.Params.MaxSlots())
	}
	pt := ckks.NewPlaintext(h.Params, h.Params.MaxLevel())
	pt.Scale = h.Params.DefaultScale()
	if err := h.Encoder.Encode(vals, pt); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	ct, err := h.Encryptor.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return ct, nil
}

// DecryptVector decrypts ct and returns the real part of its first n slots.
func (h *HeContext) DecryptVector(ct *rlwe.Ciphertext, n int) ([]float64, error) {
	if n > h.Params.MaxSlots() {
		return nil, fmt.Errorf("requested %d slots of %d", n, h.Params.MaxSlots())
	}
	pt := h.Decryptor.DecryptNew(ct)
	decoded := make([]complex128, h.Params.MaxSlots())
	if err := h.Encoder.Decode(pt, decoded); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = real(decoded[i])
	}
	return out, nil
}

// HasLevels reports whether ct can still absorb n rescales.
func HasLevels(ct *rlwe.Ciphertext, n int) bool {
	return ct.Level() >= n
}
