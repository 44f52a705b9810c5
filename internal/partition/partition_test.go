package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSplitSizes verifies the balanced split: the first rows%workers
// partitions get one extra row.
func TestSplitSizes(t *testing.T) {
	tests := []struct {
		name    string
		rows    int
		workers int
		sizes   []int
	}{
		{name: "even split", rows: 4, workers: 2, sizes: []int{2, 2}},
		{name: "uneven split", rows: 3, workers: 2, sizes: []int{2, 1}},
		{name: "ten over three", rows: 10, workers: 3, sizes: []int{4, 3, 3}},
		{name: "single worker", rows: 7, workers: 1, sizes: []int{7}},
		{name: "fewer rows than workers", rows: 2, workers: 4, sizes: []int{1, 1, 0, 0}},
		{name: "no rows", rows: 0, workers: 2, sizes: []int{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, err := Split(tt.rows, tt.workers)
			require.NoError(t, err)
			require.Len(t, parts, tt.workers)

			sizes := make([]int, len(parts))
			for i, p := range parts {
				sizes[i] = p.Len()
			}
			assert.Equal(t, tt.sizes, sizes)
		})
	}
}

// TestSplitCoverage checks, for a grid of row and worker counts, that the
// partitions are ordered, disjoint and cover exactly [0, rows).
func TestSplitCoverage(t *testing.T) {
	for rows := 0; rows <= 40; rows++ {
		for workers := 1; workers <= 12; workers++ {
			parts, err := Split(rows, workers)
			require.NoError(t, err)
			require.NoError(t, Validate(parts, rows), "rows=%d workers=%d", rows, workers)

			covered := make([]int, rows)
			for _, p := range parts {
				for r := p.Start; r < p.End; r++ {
					covered[r]++
				}
			}
			for r, n := range covered {
				assert.Equal(t, 1, n, "row %d covered %d times (rows=%d workers=%d)", r, n, rows, workers)
			}
		}
	}
}

// TestSplitEmptyPartitionsTrail verifies empty partitions only appear at the end.
func TestSplitEmptyPartitionsTrail(t *testing.T) {
	parts, err := Split(3, 5)
	require.NoError(t, err)

	for i, p := range parts {
		assert.Equal(t, i >= 3, p.Empty(), "partition %d", i)
	}
	assert.Equal(t, Partition{Index: 4, Start: 3, End: 3}, parts[4])
}

// TestSplitInvalidInput checks argument validation.
func TestSplitInvalidInput(t *testing.T) {
	_, err := Split(4, 0)
	assert.ErrorIs(t, err, ErrNoWorkers)

	_, err = Split(-1, 2)
	assert.ErrorIs(t, err, ErrNegativeRows)
}

// TestValidateRejectsBadLayouts exercises the coverage checks.
func TestValidateRejectsBadLayouts(t *testing.T) {
	tests := []struct {
		name  string
		parts []Partition
		rows  int
	}{
		{name: "gap", parts: []Partition{{0, 0, 1}, {1, 2, 3}}, rows: 3},
		{name: "overlap", parts: []Partition{{0, 0, 2}, {1, 1, 3}}, rows: 3},
		{name: "short", parts: []Partition{{0, 0, 1}, {1, 1, 2}}, rows: 3},
		{name: "out of order index", parts: []Partition{{1, 0, 1}, {0, 1, 3}}, rows: 3},
		{name: "inverted range", parts: []Partition{{0, 0, 2}, {1, 2, 1}}, rows: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tt.parts, tt.rows), ErrCoverage)
		})
	}
}

func TestPartitionString(t *testing.T) {
	assert.Equal(t, "partition[2] rows [4,6)", Partition{Index: 2, Start: 4, End: 6}.String())
}
