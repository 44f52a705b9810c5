// Package coordinator splits a matrix product across remote workers and
// assembles the result, failing the whole job if any single worker fails.
//
// # Overview
//
// A Coordinator owns a transport.Listener. For each job it divides the rows
// of A into one contiguous partition per worker, accepts that many worker
// connections, and runs a session per connection. Every worker receives its
// slice of A together with all of B and returns the corresponding rows of
// A × B.
//
// # Architecture
//
//	┌───────────────────────────────────────────┐
//	│               COORDINATOR                 │
//	├───────────────────────────────────────────┤
//	│  validate shapes ── partition.Split       │
//	│           │                               │
//	│           ▼                               │
//	│  Accept #0 ──► session[0] ──┐             │
//	│  Accept #1 ──► session[1] ──┤  barrier    │
//	│  ...                        ├──► sort ──► │ Concat ──► A × B
//	│  Accept #N-1 ► session[N-1] ┘             │
//	└───────────────────────────────────────────┘
//
// The i-th accepted connection serves partition i. Sessions start as soon as
// their connection is accepted, so early workers compute while later ones
// are still connecting.
//
// # Failure Handling
//
// The job is all-or-nothing:
//   - The first session failure cancels the shared context
//   - Cancellation unblocks pending accepts and in-flight reads and writes
//   - Multiply waits for every started session before returning
//   - The returned error is the first failure, a *session.Error naming the
//     partition and worker
//
// Partials are only assembled when every session completed. Assembly sorts
// them by partition index, since completion order is arbitrary, and checks
// the final shape against A.Rows() × B.Cols().
//
// # Status
//
// Status returns a snapshot of the current or last job: its ID, overall
// state and one entry per session with the worker address and session
// state. cmd/coordinator serves it as JSON on /status.
//
// # Usage Example
//
//	l, _ := transport.ListenTCP(":9000", transport.Options{})
//	c, _ := coordinator.New(l, coordinator.Config{Workers: 4})
//
//	result, err := c.Multiply(ctx, a, b)
//	if err != nil {
//	    var serr *session.Error
//	    if errors.As(err, &serr) {
//	        log.Printf("partition %d failed: %s", serr.Partition.Index, serr.Kind())
//	    }
//	}
//
// # See Also
//
// Related packages:
//   - internal/session: Per-worker state machine
//   - internal/worker: Remote side of the exchange
//   - cmd/coordinator: Process wrapper serving /health and /status
package coordinator
