package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MatMul returns a×b (2-D only), or error if dims mismatch.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("%w: MatMul requires 2-D tensors, got %v and %v", ErrShape, a.Shape, b.Shape)
	}
	r, k := a.Shape[0], a.Shape[1]
	k2, c := b.Shape[0], b.Shape[1]
	if k != k2 {
		return nil, fmt.Errorf("%w: inner dimensions must match: %d vs %d", ErrShape, k, k2)
	}
	if r == 0 || k == 0 || c == 0 {
		return nil, fmt.Errorf("%w: zero-sized operand %v x %v", ErrShape, a.Shape, b.Shape)
	}
	out := New(r, c)
	dst := mat.NewDense(r, c, out.Data)
	dst.Mul(mat.NewDense(r, k, a.Data), mat.NewDense(k, c, b.Data))
	return out, nil
}

// MatMulT returns a×bᵀ. a is (r, k), b is (c, k); the result is (r, c).
// Linear layers keep their weights as (out, in) and use this to map a
// batch-major input without materializing the transpose.
func MatMulT(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("%w: MatMulT requires 2-D tensors, got %v and %v", ErrShape, a.Shape, b.Shape)
	}
	r, k := a.Shape[0], a.Shape[1]
	c, k2 := b.Shape[0], b.Shape[1]
	if k != k2 {
		return nil, fmt.Errorf("%w: inner dimensions must match: %d vs %d", ErrShape, k, k2)
	}
	if r == 0 || k == 0 || c == 0 {
		return nil, fmt.Errorf("%w: zero-sized operand %v x %v", ErrShape, a.Shape, b.Shape)
	}
	out := New(r, c)
	dst := mat.NewDense(r, c, out.Data)
	dst.Mul(mat.NewDense(r, k, a.Data), mat.NewDense(c, k, b.Data).T())
	return out, nil
}

// Narrow returns columns [start, end) of a 2-D tensor as a new tensor.
// The batch axis is preserved.
func Narrow(t *Tensor, start, end int) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("%w: Narrow requires a 2-D tensor, got %v", ErrShape, t.Shape)
	}
	rows, cols := t.Shape[0], t.Shape[1]
	if start < 0 || end > cols || start > end {
		return nil, fmt.Errorf("%w: range [%d, %d) outside feature axis of width %d", ErrShape, start, end, cols)
	}
	w := end - start
	out := New(rows, w)
	for i := 0; i < rows; i++ {
		copy(out.Data[i*w:(i+1)*w], t.Data[i*cols+start:i*cols+end])
	}
	return out, nil
}

// Concat joins 2-D tensors along the feature axis. All inputs must share
// the same batch size.
func Concat(ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("%w: Concat needs at least one tensor", ErrShape)
	}
	rows := -1
	width := 0
	for i, t := range ts {
		if len(t.Shape) != 2 {
			return nil, fmt.Errorf("%w: Concat operand %d is not 2-D: %v", ErrShape, i, t.Shape)
		}
		if rows >= 0 && t.Shape[0] != rows {
			return nil, fmt.Errorf("%w: Concat batch sizes differ: %d vs %d", ErrShape, rows, t.Shape[0])
		}
		rows = t.Shape[0]
		width += t.Shape[1]
	}
	out := New(rows, width)
	for i := 0; i < rows; i++ {
		off := i * width
		for _, t := range ts {
			c := t.Shape[1]
			copy(out.Data[off:off+c], t.Data[i*c:(i+1)*c])
			off += c
		}
	}
	return out, nil
}

// Reshape returns a tensor sharing t's data with a new shape.
func Reshape(t *Tensor, shape ...int) (*Tensor, error) {
	if Numel(shape) != len(t.Data) {
		return nil, fmt.Errorf("%w: cannot reshape %v to %v", ErrShape, t.Shape, shape)
	}
	return &Tensor{Data: t.Data, Shape: append([]int(nil), shape...)}, nil
}

// AllClose reports whether a and b have the same shape and every pair of
// elements differs by at most tol.
func AllClose(a, b *Tensor, tol float64) bool {
	if !SameShape(a, b) {
		return false
	}
	for i := range a.Data {
		if math.Abs(a.Data[i]-b.Data[i]) > tol {
			return false
		}
	}
	return true
}

// MaxAbsDiff is the largest elementwise |a-b|. Shapes must match.
func MaxAbsDiff(a, b *Tensor) (float64, error) {
	if !SameShape(a, b) {
		return 0, fmt.Errorf("%w: %v vs %v", ErrShape, a.Shape, b.Shape)
	}
	m := 0.0
	for i := range a.Data {
		if d := math.Abs(a.Data[i] - b.Data[i]); d > m {
			m = d
		}
	}
	return m, nil
}
