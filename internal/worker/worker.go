// Package worker implements the remote side of the protocol: receive one
// task, compute the partial product, return it, and stop.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dreamware/rowsplit/internal/matrix"
	"github.com/dreamware/rowsplit/internal/transport"
	"github.com/dreamware/rowsplit/internal/wire"
)

// Compute validates a task and multiplies its rows of A by B.
//
// A task with no rows of A skips validation and yields 0 × b.Cols().
// Otherwise a_rows.Cols() must equal b.Rows().
func Compute(task wire.Task, opts ...matrix.Option) (*matrix.Matrix, error) {
	if task.ARows.Rows() == 0 {
		return matrix.New(0, task.B.Cols())
	}
	if task.ARows.Cols() != task.B.Rows() {
		return nil, fmt.Errorf("%w: a_rows is %s, b is %s", matrix.ErrDimensionMismatch, task.ARows.Shape(), task.B.Shape())
	}
	return matrix.Multiply(task.ARows, task.B, opts...)
}

// Runtime serves exactly one task per connection and keeps no state between
// connections.
type Runtime struct {
	codec  wire.Codec
	kernel []matrix.Option
}

// NewRuntime returns a runtime that decodes with codec and passes kernel
// options (tracer, parallelism) to every multiplication.
func NewRuntime(codec wire.Codec, kernel ...matrix.Option) *Runtime {
	return &Runtime{codec: codec, kernel: kernel}
}

// Serve reads one task frame from conn, computes the product and writes one
// result frame. The connection is closed before Serve returns.
//
// When the task is malformed or its shapes disagree, no result is written;
// the coordinator sees the connection close and fails the session.
func (r *Runtime) Serve(ctx context.Context, conn transport.Conn) error {
	defer conn.Close()

	frame, err := conn.ReadFrame(ctx)
	if err != nil {
		return fmt.Errorf("receive task: %w", err)
	}
	task, err := r.codec.DecodeTask(frame)
	if err != nil {
		return err
	}
	log.Printf("worker received %s rows of A and %s B from %s", task.ARows.Shape(), task.B.Shape(), conn.RemoteAddr())

	start := time.Now()
	result, err := Compute(task, r.kernel...)
	if err != nil {
		return err
	}
	log.Printf("worker computed %s partial in %v", result.Shape(), time.Since(start))

	payload, err := r.codec.EncodeResult(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := conn.WriteFrame(ctx, payload); err != nil {
		return fmt.Errorf("send result: %w", err)
	}
	log.Printf("worker sent result to %s", conn.RemoteAddr())
	return nil
}

// DialFunc opens a connection to the coordinator.
type DialFunc func(ctx context.Context) (transport.Conn, error)

// ConnectAndServe dials the coordinator, retrying up to attempts times with
// delay between tries, then serves a single task.
func (r *Runtime) ConnectAndServe(ctx context.Context, dial DialFunc, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, err := dial(ctx)
		if err == nil {
			log.Printf("connected to coordinator @ %s", conn.RemoteAddr())
			return r.Serve(ctx, conn)
		}
		lastErr = err
		log.Printf("connect retry %d: %v", i+1, err)

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("failed to connect to coordinator after %d attempts: %w", attempts, lastErr)
}
