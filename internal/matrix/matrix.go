// Package matrix provides the dense float64 primitives the network math is
// built on. Every operation checks operand shapes up front and reports a
// *ShapeError instead of letting gonum panic.
package matrix

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense rows×cols float64 matrix backed by gonum.
type Matrix struct {
	d *mat.Dense
}

// New returns a zero-filled rows×cols matrix.
func New(rows, cols int) *Matrix {
	return &Matrix{d: mat.NewDense(rows, cols, nil)}
}

// NewFromData builds a matrix from row-major data. len(data) must equal
// rows*cols.
func NewFromData(rows, cols int, data []float64) (*Matrix, error) {
	if len(data) != rows*cols {
		return nil, &ShapeError{Op: "new", ARows: rows, ACols: cols, BRows: len(data), BCols: 1}
	}
	buf := make([]float64, len(data))
	copy(buf, data)
	return &Matrix{d: mat.NewDense(rows, cols, buf)}, nil
}

// FromRows builds a matrix from per-row slices, validating that every row has
// the same length.
func FromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, &ShapeError{Op: "fromrows"}
	}
	cols := len(rows[0])
	out := New(len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, &ShapeError{Op: "fromrows", ARows: len(rows), ACols: cols, BRows: i, BCols: len(row)}
		}
		for j, v := range row {
			out.d.Set(i, j, v)
		}
	}
	return out, nil
}

// NewUniform returns a rows×cols matrix with entries drawn uniformly from
// [-limit, limit) using the supplied generator.
func NewUniform(rows, cols int, limit float64, rng *rand.Rand) *Matrix {
	m := New(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.d.Set(i, j, rng.Float64()*2*limit-limit)
		}
	}
	return m
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int {
	r, _ := m.d.Dims()
	return r
}

// Cols returns the number of columns.
func (m *Matrix) Cols() int {
	_, c := m.d.Dims()
	return c
}

// At returns the element at (i, j).
func (m *Matrix) At(i, j int) float64 { return m.d.At(i, j) }

// Set stores v at (i, j).
func (m *Matrix) Set(i, j int, v float64) { m.d.Set(i, j, v) }

// Row copies row i into a new slice.
func (m *Matrix) Row(i int) []float64 {
	out := make([]float64, m.Cols())
	mat.Row(out, i, m.d)
	return out
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	out := New(m.Rows(), m.Cols())
	out.d.Copy(m.d)
	return out
}

// RawData returns a copy of the row-major backing data.
func (m *Matrix) RawData() []float64 {
	out := make([]float64, m.Rows()*m.Cols())
	copy(out, m.d.RawMatrix().Data)
	return out
}

func (m *Matrix) sameShape(op string, b *Matrix) error {
	if m.Rows() != b.Rows() || m.Cols() != b.Cols() {
		return &ShapeError{Op: op, ARows: m.Rows(), ACols: m.Cols(), BRows: b.Rows(), BCols: b.Cols()}
	}
	return nil
}

// Add returns m + b element-wise.
func (m *Matrix) Add(b *Matrix) (*Matrix, error) {
	if err := m.sameShape("add", b); err != nil {
		return nil, err
	}
	out := New(m.Rows(), m.Cols())
	out.d.Add(m.d, b.d)
	return out, nil
}

// Sub returns m - b element-wise.
func (m *Matrix) Sub(b *Matrix) (*Matrix, error) {
	if err := m.sameShape("sub", b); err != nil {
		return nil, err
	}
	out := New(m.Rows(), m.Cols())
	out.d.Sub(m.d, b.d)
	return out, nil
}

// MulElem returns the element-wise (Hadamard) product.
func (m *Matrix) MulElem(b *Matrix) (*Matrix, error) {
	if err := m.sameShape("mulelem", b); err != nil {
		return nil, err
	}
	out := New(m.Rows(), m.Cols())
	out.d.MulElem(m.d, b.d)
	return out, nil
}

// Mul returns the matrix product m·b. m.Cols must equal b.Rows.
func (m *Matrix) Mul(b *Matrix) (*Matrix, error) {
	if m.Cols() != b.Rows() {
		return nil, &ShapeError{Op: "mul", ARows: m.Rows(), ACols: m.Cols(), BRows: b.Rows(), BCols: b.Cols()}
	}
	out := New(m.Rows(), b.Cols())
	out.d.Mul(m.d, b.d)
	return out, nil
}

// T returns the transpose as a new matrix.
func (m *Matrix) T() *Matrix {
	out := New(m.Cols(), m.Rows())
	out.d.Copy(m.d.T())
	return out
}

// Apply returns a new matrix with f applied to every element.
func (m *Matrix) Apply(f func(float64) float64) *Matrix {
	out := New(m.Rows(), m.Cols())
	out.d.Apply(func(_, _ int, v float64) float64 { return f(v) }, m.d)
	return out
}

// Scale returns s * m.
func (m *Matrix) Scale(s float64) *Matrix {
	out := New(m.Rows(), m.Cols())
	out.d.Scale(s, m.d)
	return out
}

// AddScaledInPlace sets m = m + s*b. Used by the optimizer rules for
// in-place parameter updates.
func (m *Matrix) AddScaledInPlace(s float64, b *Matrix) error {
	if err := m.sameShape("addscaled", b); err != nil {
		return err
	}
	rows, cols := m.Rows(), m.Cols()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.d.Set(i, j, m.d.At(i, j)+s*b.d.At(i, j))
		}
	}
	return nil
}

// MulVec returns the product m·x for a column vector x of length m.Cols.
func (m *Matrix) MulVec(x []float64) ([]float64, error) {
	if m.Cols() != len(x) {
		return nil, &ShapeError{Op: "mulvec", ARows: m.Rows(), ACols: m.Cols(), BRows: len(x), BCols: 1}
	}
	v := mat.NewVecDense(len(x), x)
	var out mat.VecDense
	out.MulVec(m.d, v)
	res := make([]float64, m.Rows())
	copy(res, out.RawVector().Data)
	return res, nil
}

// AllFinite reports whether every element is a finite number.
func (m *Matrix) AllFinite() bool {
	raw := m.d.RawMatrix()
	for _, v := range raw.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Equal reports exact element equality with b.
func (m *Matrix) Equal(b *Matrix) bool {
	if m.Rows() != b.Rows() || m.Cols() != b.Cols() {
		return false
	}
	return mat.Equal(m.d, b.d)
}
