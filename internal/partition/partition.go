// Package partition splits a row index range into contiguous, ordered,
// non-overlapping chunks, one per worker.
package partition

import (
	"errors"
	"fmt"
)

var (
	// ErrNoWorkers is returned when fewer than one worker is requested.
	ErrNoWorkers = errors.New("partition: worker count must be >= 1")

	// ErrNegativeRows is returned for a negative row count.
	ErrNegativeRows = errors.New("partition: row count must be >= 0")

	// ErrCoverage is returned by Validate when partitions do not exactly
	// cover [0, rows) in ascending order.
	ErrCoverage = errors.New("partition: ranges do not cover row space")
)

// Partition is a contiguous, zero-based row range [Start, End) of operand A
// owned by the worker with ordinal Index.
//
// Partitions produced by Split satisfy:
//   - Index equals the position of the partition in the returned slice
//   - ranges are pairwise disjoint and listed in ascending Start order
//   - the union of all ranges is exactly [0, rows)
//
// A partition may be empty (Start == End) when there are fewer rows than
// workers. Empty partitions still take part in the protocol.
type Partition struct {
	// Index is the worker ordinal and the position of this range in the
	// final result. Valid range: [0, workers).
	Index int `json:"index"`

	// Start is the first row of the range (inclusive).
	Start int `json:"start"`

	// End is one past the last row of the range (exclusive).
	End int `json:"end"`
}

// Len returns the number of rows in the partition.
func (p Partition) Len() int { return p.End - p.Start }

// Empty reports whether the partition covers no rows.
func (p Partition) Empty() bool { return p.Start == p.End }

func (p Partition) String() string {
	return fmt.Sprintf("partition[%d] rows [%d,%d)", p.Index, p.Start, p.End)
}

// Split divides [0, rows) into workers balanced contiguous partitions.
//
// With base = rows / workers and extra = rows % workers, the first extra
// partitions receive base+1 rows and the rest receive base rows. When
// rows < workers the trailing workers-rows partitions are empty.
//
// Example:
//
//	parts, _ := Split(10, 3)
//	// [0,4) [4,7) [7,10)
func Split(rows, workers int) ([]Partition, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrNoWorkers, workers)
	}
	if rows < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeRows, rows)
	}

	base, extra := rows/workers, rows%workers
	parts := make([]Partition, workers)
	start := 0
	for i := range parts {
		size := base
		if i < extra {
			size++
		}
		parts[i] = Partition{Index: i, Start: start, End: start + size}
		start += size
	}

	return parts, nil
}

// Validate checks that parts are ordered by Index, contiguous, disjoint and
// cover exactly [0, rows).
func Validate(parts []Partition, rows int) error {
	next := 0
	for i, p := range parts {
		if p.Index != i {
			return fmt.Errorf("%w: position %d holds index %d", ErrCoverage, i, p.Index)
		}
		if p.Start != next || p.End < p.Start {
			return fmt.Errorf("%w: %s does not start at row %d", ErrCoverage, p, next)
		}
		next = p.End
	}
	if next != rows {
		return fmt.Errorf("%w: covered [0,%d), want [0,%d)", ErrCoverage, next, rows)
	}
	return nil
}
