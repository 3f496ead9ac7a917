package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShape(t *testing.T) {
	t1 := New(2, 3)
	if len(t1.Data) != 6 {
		t.Fatalf("expected 6 elements, got %d", len(t1.Data))
	}
	if len(t1.Shape) != 2 || t1.Shape[0] != 2 || t1.Shape[1] != 3 {
		t.Fatalf("unexpected shape: %v", t1.Shape)
	}
}

func TestAdd(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3}, Shape: []int{3}}
	b := &Tensor{Data: []float64{4, 5, 6}, Shape: []int{3}}
	c, err := Add(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{5, 7, 9}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, c.Data[i], want[i])
		}
	}

	_, err = Add(a, New(2))
	require.ErrorIs(t, err, ErrShape)
}

func TestMatMul(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3, 4}, Shape: []int{2, 2}}
	b := &Tensor{Data: []float64{5, 6, 7, 8}, Shape: []int{2, 2}}
	c, err := MatMul(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{19, 22, 43, 50}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, c.Data[i], want[i])
		}
	}

	_, err = MatMul(New(2, 3), New(2, 3))
	require.ErrorIs(t, err, ErrShape)
}

func TestMatMulT(t *testing.T) {
	// x is (2,3), w is (2,3): x·wᵀ is (2,2)
	x := &Tensor{Data: []float64{1, 2, 3, 4, 5, 6}, Shape: []int{2, 3}}
	w := &Tensor{Data: []float64{1, 0, 1, 0, 1, 0}, Shape: []int{2, 3}}
	out, err := MatMulT(x, w)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, out.Shape)
	assert.Equal(t, []float64{4, 2, 10, 5}, out.Data)

	_, err = MatMulT(x, New(2, 4))
	require.ErrorIs(t, err, ErrShape)
}

func TestReluPlain(t *testing.T) {
	a := &Tensor{Data: []float64{-1, 0, 3}, Shape: []int{3}}
	c := ReluPlain(a)
	want := []float64{0, 0, 3}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, c.Data[i], want[i])
		}
	}
}

func TestAtSet(t *testing.T) {
	x := New(2, 3, 4)
	x.Set(7, 1, 2, 3)
	assert.Equal(t, 7.0, x.At(1, 2, 3))
	assert.Equal(t, 7.0, x.Data[len(x.Data)-1])
	assert.Panics(t, func() { x.At(2, 0, 0) })
	assert.Panics(t, func() { x.At(0, 0) })
}

func TestNarrowAndConcat(t *testing.T) {
	x := New(2, 5)
	for i := range x.Data {
		x.Data[i] = float64(i)
	}
	left, err := Narrow(x, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 5, 6}, left.Data)

	right, err := Narrow(x, 3, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4, 8, 9}, right.Data)

	joined, err := Concat(left, right)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, joined.Shape)
	assert.Equal(t, []float64{0, 1, 3, 4, 5, 6, 8, 9}, joined.Data)

	_, err = Narrow(x, 3, 6)
	require.ErrorIs(t, err, ErrShape)

	_, err = Concat(left, New(3, 2))
	require.ErrorIs(t, err, ErrShape)
}

func TestReshapeSharesData(t *testing.T) {
	x := New(2, 3)
	y, err := Reshape(x, 3, 2)
	require.NoError(t, err)
	y.Data[0] = 42
	assert.Equal(t, 42.0, x.Data[0])

	_, err = Reshape(x, 4, 2)
	require.ErrorIs(t, err, ErrShape)
}

func TestFromDataAndClose(t *testing.T) {
	a, err := FromData([]float64{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)
	b := a.Clone()
	b.Data[3] += 1e-9
	assert.True(t, AllClose(a, b, 1e-6))
	assert.False(t, AllClose(a, b, 1e-12))

	d, err := MaxAbsDiff(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1e-9, d, 1e-12)

	_, err = FromData([]float64{1, 2, 3}, 2, 2)
	require.ErrorIs(t, err, ErrShape)
}
