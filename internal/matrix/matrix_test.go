package matrix

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRows(t *testing.T, rows [][]int64) *Matrix {
	t.Helper()
	m, err := FromRows(rows)
	require.NoError(t, err)
	return m
}

// naive is an independent reference multiplication used to check Multiply.
func naive(a, b [][]int64) [][]int64 {
	out := make([][]int64, len(a))
	for i := range a {
		out[i] = make([]int64, len(b[0]))
		for j := range b[0] {
			for k := range b {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

// TestFromRows verifies construction, copying and the rectangular invariant.
func TestFromRows(t *testing.T) {
	src := [][]int64{{1, 2}, {3, 4}, {5, 6}}
	m := mustRows(t, src)

	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 2, m.Cols())
	assert.Equal(t, "3x2", m.Shape())

	// Source slices are copied.
	src[0][0] = 100
	v, err := m.At(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = FromRows([][]int64{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrNotRectangular)

	empty, err := FromRows(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Rows())
	assert.Equal(t, 0, empty.Cols())
	assert.NotNil(t, empty.Data())
}

func TestNew(t *testing.T) {
	m, err := New(0, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Rows())
	assert.Equal(t, 5, m.Cols())

	_, err = New(-1, 2)
	assert.ErrorIs(t, err, ErrBadShape)
}

func TestAtSetBounds(t *testing.T) {
	m, err := New(2, 2)
	require.NoError(t, err)

	require.NoError(t, m.Set(1, 1, 9))
	v, err := m.At(1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(9), v)

	assert.ErrorIs(t, m.Set(2, 0, 1), ErrOutOfRange)
	_, err = m.At(0, -1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = m.Row(5)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

// TestSlice checks row-range copies keep the column count, even when empty.
func TestSlice(t *testing.T) {
	m := mustRows(t, [][]int64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}})

	s, err := m.Slice(1, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{4, 5, 6}, {7, 8, 9}}, s.Data())

	require.NoError(t, s.Set(0, 0, -1))
	orig, _ := m.At(1, 0)
	assert.Equal(t, int64(4), orig, "slice must not alias the source")

	e, err := m.Slice(3, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, e.Rows())
	assert.Equal(t, 3, e.Cols())

	_, err = m.Slice(2, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = m.Slice(0, 4)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestEqualAndClone(t *testing.T) {
	m := mustRows(t, [][]int64{{1, 2}, {3, 4}})
	c := m.Clone()
	assert.True(t, m.Equal(c))

	require.NoError(t, c.Set(0, 1, 7))
	assert.False(t, m.Equal(c))

	wide, _ := New(0, 3)
	narrow, _ := New(0, 2)
	assert.False(t, wide.Equal(narrow), "shape is part of equality")

	var nilM *Matrix
	assert.True(t, nilM.Equal(nil))
	assert.False(t, m.Equal(nil))
}

// TestConcat verifies vertical stacking and column checks.
func TestConcat(t *testing.T) {
	top := mustRows(t, [][]int64{{1, 2}})
	bottom := mustRows(t, [][]int64{{3, 4}, {5, 6}})
	empty := mustRows(t, nil)

	out, err := Concat(top, empty, bottom)
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{1, 2}, {3, 4}, {5, 6}}, out.Data())

	_, err = Concat(top, mustRows(t, [][]int64{{1, 2, 3}}))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	none, err := Concat(empty, empty)
	require.NoError(t, err)
	assert.Equal(t, 0, none.Rows())
}

// TestMultiply covers the kernel against a reference implementation.
func TestMultiply(t *testing.T) {
	tests := []struct {
		name string
		a, b [][]int64
	}{
		{
			name: "identity",
			a:    [][]int64{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10, 11, 12}, {13, 14, 15, 16}},
			b:    [][]int64{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}},
		},
		{
			name: "rectangular",
			a:    [][]int64{{1, 2}, {3, 4}, {5, 6}},
			b:    [][]int64{{7, 8, 9}, {10, 11, 12}},
		},
		{
			name: "negative values",
			a:    [][]int64{{-1, 2}, {0, -3}},
			b:    [][]int64{{4, -5}, {6, 7}},
		},
		{
			name: "row vector times column vector",
			a:    [][]int64{{1, 2, 3}},
			b:    [][]int64{{4}, {5}, {6}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Multiply(mustRows(t, tt.a), mustRows(t, tt.b))
			require.NoError(t, err)
			assert.Equal(t, naive(tt.a, tt.b), got.Data())
			assert.Equal(t, len(tt.b[0]), got.Cols())
		})
	}
}

func TestMultiplyDimensionMismatch(t *testing.T) {
	a := mustRows(t, [][]int64{{1, 2, 3}})
	b := mustRows(t, [][]int64{{1, 2}, {3, 4}})

	_, err := Multiply(a, b)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "1x3")
}

// TestMultiplyEmptyA checks that zero rows of A produce 0 × b.Cols().
func TestMultiplyEmptyA(t *testing.T) {
	b := mustRows(t, [][]int64{{1, 2, 3}, {4, 5, 6}})

	got, err := Multiply(mustRows(t, nil), b)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Rows())
	assert.Equal(t, 3, got.Cols())
}

// TestMultiplyIdempotent verifies repeated calls on the same inputs agree and
// leave the inputs untouched.
func TestMultiplyIdempotent(t *testing.T) {
	a := mustRows(t, [][]int64{{2, 3}, {4, 5}})
	b := mustRows(t, [][]int64{{6, 7}, {8, 9}})
	aCopy, bCopy := a.Clone(), b.Clone()

	first, err := Multiply(a, b)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Multiply(a, b)
		require.NoError(t, err)
		assert.True(t, first.Equal(again))
	}
	assert.True(t, a.Equal(aCopy))
	assert.True(t, b.Equal(bCopy))
}

// TestMultiplyParallelMatchesSequential runs the goroutine kernel across
// several fan-outs, including more goroutines than rows.
func TestMultiplyParallelMatchesSequential(t *testing.T) {
	rows := make([][]int64, 13)
	for i := range rows {
		rows[i] = []int64{int64(i), int64(i * 2), int64(-i), 1}
	}
	a := mustRows(t, rows)
	b := mustRows(t, [][]int64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}, {10, 11, 12}})

	want, err := Multiply(a, b)
	require.NoError(t, err)

	for _, n := range []int{2, 3, 4, 13, 32} {
		got, err := Multiply(a, b, WithParallelism(n))
		require.NoError(t, err)
		assert.True(t, want.Equal(got), "parallelism %d", n)
	}
}

// TestMultiplyOverflowWraps documents that int64 overflow wraps.
func TestMultiplyOverflowWraps(t *testing.T) {
	a := mustRows(t, [][]int64{{math.MaxInt64}})
	b := mustRows(t, [][]int64{{2}})

	got, err := Multiply(a, b)
	require.NoError(t, err)
	v, _ := got.At(0, 0)
	assert.Equal(t, int64(-2), v)
}

type recordingTracer struct {
	products int
	cells    [][3]int64
}

func (r *recordingTracer) Product(i, k, j int, a, b, p int64) {
	r.products++
}

func (r *recordingTracer) Cell(i, j int, sum int64) {
	r.cells = append(r.cells, [3]int64{int64(i), int64(j), sum})
}

// TestMultiplyTracer checks the trace is complete, ordered and does not
// change the result, even when parallelism is requested.
func TestMultiplyTracer(t *testing.T) {
	a := mustRows(t, [][]int64{{1, 2}, {3, 4}})
	b := mustRows(t, [][]int64{{5, 6}, {7, 8}})

	plain, err := Multiply(a, b)
	require.NoError(t, err)

	rec := &recordingTracer{}
	traced, err := Multiply(a, b, WithTracer(rec), WithParallelism(4))
	require.NoError(t, err)

	assert.True(t, plain.Equal(traced))
	assert.Equal(t, 8, rec.products)
	assert.Equal(t, [][3]int64{{0, 0, 19}, {0, 1, 22}, {1, 0, 43}, {1, 1, 50}}, rec.cells)
}
