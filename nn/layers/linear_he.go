package layers

import (
	"fmt"

	"epsnet/core/ckkswrapper"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// CipherLinear evaluates a Linear layer on CKKS ciphertexts that carry one
// sample in their first InDim slots. It is bound to one ServerKit and is not
// safe for concurrent use; plaintext encodings are cached per level.
type CipherLinear struct {
	lin  *Linear
	kit  *ckkswrapper.ServerKit
	eval *WrappedEvaluator

	rowCache  map[int][]*rlwe.Plaintext // keyed by level
	maskCache map[int]*rlwe.Plaintext   // keyed by level
}

// NewCipherLinear binds l to kit. The kit must hold keys for l.Rotations().
func NewCipherLinear(l *Linear, kit *ckkswrapper.ServerKit) (*CipherLinear, error) {
	slots := kit.Params.MaxSlots()
	if l.InDim() > slots || l.OutDim() > slots {
		return nil, fmt.Errorf("%s does not fit in %d slots", l.Tag(), slots)
	}
	if kit.Params.MaxLevel() < l.Levels() {
		return nil, fmt.Errorf("%s needs %d levels, parameters provide %d", l.Tag(), l.Levels(), kit.Params.MaxLevel())
	}
	return &CipherLinear{
		lin:       l,
		kit:       kit,
		eval:      NewWrappedEvaluator(kit.GetWorkerEvaluator()),
		rowCache:  map[int][]*rlwe.Plaintext{},
		maskCache: map[int]*rlwe.Plaintext{},
	}, nil
}

// Evaluator exposes the counting evaluator used by Forward.
func (c *CipherLinear) Evaluator() *WrappedEvaluator { return c.eval }

// Forward computes Wx+b homomorphically. Output j lands in slot j; the
// result sits two levels below the input.
func (c *CipherLinear) Forward(ct *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	if ct == nil {
		return nil, fmt.Errorf("input ciphertext is nil")
	}
	if !ckkswrapper.HasLevels(ct, c.lin.Levels()) {
		return nil, fmt.Errorf("%s needs %d levels, ciphertext has %d", c.lin.Tag(), c.lin.Levels(), ct.Level())
	}
	rows, err := c.rowPlaintexts(ct.Level())
	if err != nil {
		return nil, err
	}
	mask, err := c.maskPlaintext(ct.Level() - 1)
	if err != nil {
		return nil, err
	}

	var acc *rlwe.Ciphertext
	for j, row := range rows {
		dot, err := c.treeSum(ct, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", j, err)
		}
		slot, err := c.mulRescale(dot, mask)
		if err != nil {
			return nil, fmt.Errorf("row %d mask: %w", j, err)
		}
		if j > 0 {
			if slot, err = c.eval.RotateNew(slot, -j); err != nil {
				return nil, fmt.Errorf("row %d rotate: %w", j, err)
			}
		}
		if acc == nil {
			acc = slot
			continue
		}
		if acc, err = c.eval.AddNew(acc, slot); err != nil {
			return nil, fmt.Errorf("row %d accumulate: %w", j, err)
		}
	}

	params := c.kit.Params
	biasPT := ckks.NewPlaintext(params, acc.Level())
	biasPT.Scale = acc.Scale
	if err := c.kit.Encoder.Encode(c.lin.B.Data, biasPT); err != nil {
		return nil, fmt.Errorf("encode bias: %w", err)
	}
	return c.eval.AddPlainNew(acc, biasPT)
}

// treeSum multiplies ct by a weight row and folds the products into slot 0.
func (c *CipherLinear) treeSum(ct *rlwe.Ciphertext, row *rlwe.Plaintext) (*rlwe.Ciphertext, error) {
	sum, err := c.mulRescale(ct, row)
	if err != nil {
		return nil, err
	}
	for step := 1; step < c.lin.InDim(); step *= 2 {
		rot, err := c.eval.RotateNew(sum, step)
		if err != nil {
			return nil, err
		}
		if sum, err = c.eval.AddNew(sum, rot); err != nil {
			return nil, err
		}
	}
	return sum, nil
}

// mulRescale multiplies by a plaintext encoded at scale q_level and rescales,
// which leaves the ciphertext scale unchanged.
func (c *CipherLinear) mulRescale(ct *rlwe.Ciphertext, pt *rlwe.Plaintext) (*rlwe.Ciphertext, error) {
	tmp, err := c.eval.MulNew(ct, pt)
	if err != nil {
		return nil, err
	}
	out := rlwe.NewCiphertext(c.kit.Params, tmp.Degree(), tmp.Level()-1)
	if err := c.eval.Rescale(tmp, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CipherLinear) rowPlaintexts(level int) ([]*rlwe.Plaintext, error) {
	if rows, ok := c.rowCache[level]; ok {
		return rows, nil
	}
	inDim := c.lin.InDim()
	rows := make([]*rlwe.Plaintext, c.lin.OutDim())
	for j := range rows {
		pt, err := c.encodeAtLevel(c.lin.W.Data[j*inDim:(j+1)*inDim], level)
		if err != nil {
			return nil, fmt.Errorf("encode weight row %d: %w", j, err)
		}
		rows[j] = pt
	}
	c.rowCache[level] = rows
	return rows, nil
}

func (c *CipherLinear) maskPlaintext(level int) (*rlwe.Plaintext, error) {
	if pt, ok := c.maskCache[level]; ok {
		return pt, nil
	}
	pt, err := c.encodeAtLevel([]float64{1}, level)
	if err != nil {
		return nil, fmt.Errorf("encode mask: %w", err)
	}
	c.maskCache[level] = pt
	return pt, nil
}

func (c *CipherLinear) encodeAtLevel(vals []float64, level int) (*rlwe.Plaintext, error) {
	params := c.kit.Params
	pt := ckks.NewPlaintext(params, level)
	pt.Scale = rlwe.NewScale(params.Q()[level])
	if err := c.kit.Encoder.Encode(vals, pt); err != nil {
		return nil, err
	}
	return pt, nil
}
