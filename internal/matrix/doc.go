// Package matrix provides the dense int64 matrix used on both sides of the
// distribution protocol, together with the multiplication kernel that workers
// run on their partition.
//
// # Overview
//
// A Matrix is rectangular: every row has Cols() entries. The column count is
// stored explicitly, so a matrix with zero rows still reports its width. This
// matters for empty partitions, whose product must be 0 × B.Cols().
//
// All constructors and accessors copy their data. No Matrix shares row
// storage with a caller-supplied slice or with another Matrix, so a task
// payload built from Slice and Clone can be handed to a session without
// aliasing the coordinator's operands.
//
// # Kernel
//
// Multiply computes C = A × B with C[i][j] = Σ A[i][t] * B[t][j]:
//
//	c, err := matrix.Multiply(a, b)
//	if errors.Is(err, matrix.ErrDimensionMismatch) {
//	    // a.Cols() != b.Rows()
//	}
//
// The shape check happens before any arithmetic. Arithmetic is plain int64;
// overflow wraps around silently. This is a known limitation and is not
// corrected.
//
// Two options change how the product is evaluated, never its value:
//   - WithTracer reports every scalar product and cell sum to a Tracer
//   - WithParallelism splits the rows across goroutines using the same
//     balanced split as the coordinator's partitioner
//
// # Errors
//
// All errors wrap one of the package sentinels and should be matched with
// errors.Is: ErrDimensionMismatch, ErrNotRectangular, ErrBadShape and
// ErrOutOfRange.
package matrix
