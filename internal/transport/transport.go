// Package transport carries frames between the coordinator and workers.
//
// A Conn moves whole frames: one task payload in, one result payload out.
// How a frame is delimited is the transport's business. TCP terminates each
// frame with a newline (see wire.WriteFrame); WebSocket uses one message per
// frame. Callers only see ReadFrame and WriteFrame.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTransport is the root of connection-level failures (refused, reset,
// timed out). A transport error is fatal to the session that observed it.
var ErrTransport = errors.New("transport: transport error")

// Conn is a frame-oriented connection owned by exactly one session or worker.
type Conn interface {
	// ReadFrame blocks until one complete frame is available.
	ReadFrame(ctx context.Context) ([]byte, error)
	// WriteFrame sends payload as exactly one frame.
	WriteFrame(ctx context.Context, payload []byte) error
	// RemoteAddr identifies the peer for logs and status reports.
	RemoteAddr() string
	Close() error
}

// Listener accepts worker connections on the coordinator side.
type Listener interface {
	// Accept blocks until a worker connects or ctx is done.
	Accept(ctx context.Context) (Conn, error)
	Addr() string
	Close() error
}

// Options tune a transport.
type Options struct {
	// FrameTimeout bounds each individual frame read or write.
	// Zero means no deadline beyond the caller's context.
	FrameTimeout time.Duration

	// MaxFrameBytes caps the size of an incoming frame.
	// Zero selects wire.DefaultMaxFrameBytes.
	MaxFrameBytes int
}

// Transport names accepted in configuration.
const (
	TCPName       = "tcp"
	WebSocketName = "websocket"
)

func transportErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}

// deadline returns the earlier of ctx's deadline and now+timeout.
// The zero time means no deadline.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if cd, ok := ctx.Deadline(); ok && (d.IsZero() || cd.Before(d)) {
		d = cd
	}
	return d
}

// aLongTimeAgo is a deadline in the past, used to unblock pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

// ctxErr prefers the context's error once it is done, so that an I/O error
// caused by our own interruption is reported as cancellation.
func ctxErr(ctx context.Context, op string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("transport: %s: %w", op, cerr)
	}
	// The socket deadline can fire a moment before the context's own timer.
	if cd, ok := ctx.Deadline(); ok && !time.Now().Before(cd) {
		return fmt.Errorf("transport: %s: %w", op, context.DeadlineExceeded)
	}
	return transportErr(op, err)
}
