package matrix

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestFromRowsRejectsRaggedInput(t *testing.T) {
	_, err := FromRows([][]float64{{1, 2}, {3}})
	var shapeErr *ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ShapeError, got %v", err)
	}
}

func TestAddShapeMismatch(t *testing.T) {
	a := New(2, 3)
	b := New(3, 2)
	if _, err := a.Add(b); err == nil {
		t.Fatal("expected shape mismatch, got nil")
	}
	if _, err := a.MulElem(b); err == nil {
		t.Fatal("expected shape mismatch, got nil")
	}
	if _, err := a.Mul(New(2, 2)); err == nil {
		t.Fatal("expected shape mismatch for 2x3 · 2x2, got nil")
	}
}

func TestMulAssociativity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := NewUniform(3, 4, 1, rng)
	b := NewUniform(4, 5, 1, rng)
	c := NewUniform(5, 2, 1, rng)

	ab, err := a.Mul(b)
	if err != nil {
		t.Fatalf("a·b: %v", err)
	}
	left, err := ab.Mul(c)
	if err != nil {
		t.Fatalf("(a·b)·c: %v", err)
	}
	bc, err := b.Mul(c)
	if err != nil {
		t.Fatalf("b·c: %v", err)
	}
	right, err := a.Mul(bc)
	if err != nil {
		t.Fatalf("a·(b·c): %v", err)
	}

	for i := 0; i < left.Rows(); i++ {
		for j := 0; j < left.Cols(); j++ {
			if math.Abs(left.At(i, j)-right.At(i, j)) > 1e-12 {
				t.Fatalf("associativity violated at (%d,%d): %g vs %g", i, j, left.At(i, j), right.At(i, j))
			}
		}
	}
}

func TestTranspose(t *testing.T) {
	m, err := NewFromData(2, 3, []float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	tr := m.T()
	if tr.Rows() != 3 || tr.Cols() != 2 {
		t.Fatalf("transpose shape %dx%d", tr.Rows(), tr.Cols())
	}
	if tr.At(2, 1) != 6 || tr.At(0, 1) != 4 {
		t.Fatalf("transpose values wrong: %v", tr.RawData())
	}
}

func TestMulVec(t *testing.T) {
	m, _ := NewFromData(2, 2, []float64{1, 2, 3, 4})
	out, err := m.MulVec([]float64{1, 1})
	if err != nil {
		t.Fatalf("mulvec: %v", err)
	}
	if out[0] != 3 || out[1] != 7 {
		t.Fatalf("unexpected product %v", out)
	}
	if _, err := m.MulVec([]float64{1, 2, 3}); err == nil {
		t.Fatal("expected shape mismatch for wrong vector length")
	}
}

func TestAddScaledInPlace(t *testing.T) {
	m, _ := NewFromData(1, 2, []float64{1, 2})
	g, _ := NewFromData(1, 2, []float64{10, 20})
	if err := m.AddScaledInPlace(-0.1, g); err != nil {
		t.Fatalf("addscaled: %v", err)
	}
	if math.Abs(m.At(0, 0)-0) > 1e-15 || math.Abs(m.At(0, 1)-0) > 1e-15 {
		t.Fatalf("unexpected result %v", m.RawData())
	}
}

func TestAllFinite(t *testing.T) {
	m := New(2, 2)
	if !m.AllFinite() {
		t.Fatal("zero matrix reported non-finite")
	}
	m.Set(1, 1, math.Inf(1))
	if m.AllFinite() {
		t.Fatal("Inf not detected")
	}
	m.Set(1, 1, math.NaN())
	if m.AllFinite() {
		t.Fatal("NaN not detected")
	}
}

func TestNewUniformDeterministic(t *testing.T) {
	a := NewUniform(4, 4, 0.5, rand.New(rand.NewSource(3)))
	b := NewUniform(4, 4, 0.5, rand.New(rand.NewSource(3)))
	if !a.Equal(b) {
		t.Fatal("same seed produced different matrices")
	}
	for _, v := range a.RawData() {
		if v < -0.5 || v >= 0.5 {
			t.Fatalf("value %g outside init range", v)
		}
	}
}
