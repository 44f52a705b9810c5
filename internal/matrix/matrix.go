package matrix

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDimensionMismatch is returned when operand shapes are incompatible,
	// e.g. Multiply where a.Cols() != b.Rows(), or Concat of parts with
	// different column counts.
	ErrDimensionMismatch = errors.New("matrix: dimension mismatch")

	// ErrNotRectangular is returned when rows of unequal length are supplied.
	ErrNotRectangular = errors.New("matrix: rows are not rectangular")

	// ErrBadShape is returned for negative dimensions.
	ErrBadShape = errors.New("matrix: invalid shape")

	// ErrOutOfRange indicates a row or column index outside valid bounds.
	ErrOutOfRange = errors.New("matrix: index out of range")
)

// Matrix is a dense, rectangular matrix of int64 values stored row-major.
//
// The column count is tracked explicitly so that a matrix with zero rows
// still knows its width (a 0×n product keeps n).
type Matrix struct {
	data [][]int64 // row storage, len(data) == rows
	cols int       // column count, valid even when there are no rows
}

// New creates a zero-filled matrix with the given shape.
// Either dimension may be zero; negative dimensions return ErrBadShape.
func New(rows, cols int) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadShape, rows, cols)
	}

	data := make([][]int64, rows)
	for i := range data {
		data[i] = make([]int64, cols)
	}

	return &Matrix{data: data, cols: cols}, nil
}

// FromRows builds a matrix from a slice of rows, copying every row.
// All rows must have the same length; a nil or empty slice yields a 0×0 matrix.
func FromRows(rows [][]int64) (*Matrix, error) {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}

	data := make([][]int64, len(rows))
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrNotRectangular, i, len(row), cols)
		}
		data[i] = append(make([]int64, 0, cols), row...)
	}

	return &Matrix{data: data, cols: cols}, nil
}

// Identity returns the n×n identity matrix.
func Identity(n int) (*Matrix, error) {
	m, err := New(n, n)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		m.data[i][i] = 1
	}
	return m, nil
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return len(m.data) }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// Shape returns the matrix dimensions formatted as "RxC".
func (m *Matrix) Shape() string {
	return fmt.Sprintf("%dx%d", m.Rows(), m.cols)
}

// At returns the value at (i, j).
func (m *Matrix) At(i, j int) (int64, error) {
	if i < 0 || i >= len(m.data) || j < 0 || j >= m.cols {
		return 0, fmt.Errorf("%w: (%d,%d) in %s", ErrOutOfRange, i, j, m.Shape())
	}
	return m.data[i][j], nil
}

// Set assigns v at (i, j).
func (m *Matrix) Set(i, j int, v int64) error {
	if i < 0 || i >= len(m.data) || j < 0 || j >= m.cols {
		return fmt.Errorf("%w: (%d,%d) in %s", ErrOutOfRange, i, j, m.Shape())
	}
	m.data[i][j] = v
	return nil
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) ([]int64, error) {
	if i < 0 || i >= len(m.data) {
		return nil, fmt.Errorf("%w: row %d in %s", ErrOutOfRange, i, m.Shape())
	}
	return append([]int64(nil), m.data[i]...), nil
}

// Slice returns a copy of the rows in [start, end). The column count is
// preserved even when the range is empty.
func (m *Matrix) Slice(start, end int) (*Matrix, error) {
	if start < 0 || end < start || end > len(m.data) {
		return nil, fmt.Errorf("%w: rows [%d,%d) in %s", ErrOutOfRange, start, end, m.Shape())
	}

	data := make([][]int64, end-start)
	for i := range data {
		data[i] = append(make([]int64, 0, m.cols), m.data[start+i]...)
	}
	return &Matrix{data: data, cols: m.cols}, nil
}

// Data returns a deep copy of the rows. The result is never nil, so an
// empty matrix serializes as [] rather than null.
func (m *Matrix) Data() [][]int64 {
	out := make([][]int64, len(m.data))
	for i, row := range m.data {
		out[i] = append(make([]int64, 0, len(row)), row...)
	}
	return out
}

// Clone returns a deep copy of the matrix.
func (m *Matrix) Clone() *Matrix {
	return &Matrix{data: m.Data(), cols: m.cols}
}

// Equal reports whether m and o have the same shape and values.
func (m *Matrix) Equal(o *Matrix) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.Rows() != o.Rows() || m.cols != o.cols {
		return false
	}
	for i, row := range m.data {
		for j, v := range row {
			if o.data[i][j] != v {
				return false
			}
		}
	}
	return true
}

// String renders the matrix one row per line.
func (m *Matrix) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Matrix (%s):\n", m.Shape())
	for _, row := range m.data {
		b.WriteString(fmt.Sprint(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// Concat stacks parts vertically in the order given. Parts with zero rows are
// skipped for the column check, since their width may be unknown after a
// round trip through the wire. All non-empty parts must share a column count.
func Concat(parts ...*Matrix) (*Matrix, error) {
	cols, rows := -1, 0
	for i, p := range parts {
		if p.Rows() == 0 {
			continue
		}
		if cols >= 0 && p.cols != cols {
			return nil, fmt.Errorf("%w: part %d is %s, want %d columns", ErrDimensionMismatch, i, p.Shape(), cols)
		}
		cols = p.cols
		rows += p.Rows()
	}
	if cols < 0 {
		cols = 0
	}

	data := make([][]int64, 0, rows)
	for _, p := range parts {
		for _, row := range p.data {
			data = append(data, append(make([]int64, 0, cols), row...))
		}
	}
	return &Matrix{data: data, cols: cols}, nil
}
