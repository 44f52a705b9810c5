package matrix

import (
	"fmt"
	"sync"

	"github.com/dreamware/rowsplit/internal/partition"
)

// Tracer receives a step-by-step account of a multiplication.
// Tracing is observational only and never changes the result.
type Tracer interface {
	// Product is called for every scalar product a[i][k] * b[k][j] = p.
	Product(i, k, j int, a, b, p int64)
	// Cell is called once c[i][j] has been summed.
	Cell(i, j int, sum int64)
}

type multiplyOptions struct {
	tracer      Tracer
	parallelism int
}

// Option configures Multiply.
type Option func(*multiplyOptions)

// WithTracer attaches a Tracer. Tracing forces sequential evaluation so that
// events arrive in row-major order.
func WithTracer(t Tracer) Option {
	return func(o *multiplyOptions) { o.tracer = t }
}

// WithParallelism splits the rows of a into n balanced contiguous ranges and
// computes each range on its own goroutine. Values below 2 mean sequential.
func WithParallelism(n int) Option {
	return func(o *multiplyOptions) { o.parallelism = n }
}

// Multiply computes a × b.
//
// The shape precondition a.Cols() == b.Rows() is checked before any
// arithmetic and violations return ErrDimensionMismatch. An a with zero rows
// always yields a 0 × b.Cols() matrix.
//
// Arithmetic is plain int64: overflow wraps around and is not detected.
func Multiply(a, b *Matrix, opts ...Option) (*Matrix, error) {
	var o multiplyOptions
	for _, opt := range opts {
		opt(&o)
	}

	if a.Rows() == 0 {
		return New(0, b.Cols())
	}
	if a.Cols() != b.Rows() {
		return nil, fmt.Errorf("%w: cannot multiply %s by %s", ErrDimensionMismatch, a.Shape(), b.Shape())
	}

	c, err := New(a.Rows(), b.Cols())
	if err != nil {
		return nil, err
	}

	if o.tracer != nil || o.parallelism < 2 {
		multiplyRows(a, b, c, 0, a.Rows(), o.tracer)
		return c, nil
	}

	parts, err := partition.Split(a.Rows(), min(o.parallelism, a.Rows()))
	if err != nil {
		return nil, err
	}
	var wg sync.WaitGroup
	for _, p := range parts {
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			multiplyRows(a, b, c, start, end, nil)
		}(p.Start, p.End)
	}
	wg.Wait()

	return c, nil
}

// multiplyRows fills rows [start, end) of c. Each goroutine owns a disjoint
// row range of c, so no locking is needed.
func multiplyRows(a, b, c *Matrix, start, end int, tracer Tracer) {
	inner, cols := a.cols, b.cols
	for i := start; i < end; i++ {
		arow, crow := a.data[i], c.data[i]
		for j := 0; j < cols; j++ {
			var sum int64
			for k := 0; k < inner; k++ {
				p := arow[k] * b.data[k][j]
				if tracer != nil {
					tracer.Product(i, k, j, arow[k], b.data[k][j], p)
				}
				sum += p
			}
			crow[j] = sum
			if tracer != nil {
				tracer.Cell(i, j, sum)
			}
		}
	}
}
