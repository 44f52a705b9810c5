package transport

import (
	"context"
	"errors"
	"net"

	"github.com/dreamware/rowsplit/internal/wire"
)

// TCPConn carries newline-delimited frames over a TCP stream.
type TCPConn struct {
	conn   net.Conn
	frames *wire.FrameReader
	opts   Options
}

func newTCPConn(c net.Conn, opts Options) *TCPConn {
	return &TCPConn{
		conn:   c,
		frames: wire.NewFrameReader(c, opts.MaxFrameBytes),
		opts:   opts,
	}
}

// DialTCP connects to a coordinator listening at addr.
func DialTCP(ctx context.Context, addr string, opts Options) (*TCPConn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, transportErr("dial "+addr, err)
	}
	return newTCPConn(c, opts), nil
}

// ReadFrame reads one newline-terminated frame. Framing failures are
// returned as wire.ErrProtocol, everything else as ErrTransport or the
// context's error.
func (c *TCPConn) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.conn.SetReadDeadline(deadline(ctx, c.opts.FrameTimeout)); err != nil {
		return nil, transportErr("set read deadline", err)
	}
	stop := context.AfterFunc(ctx, func() { c.conn.SetReadDeadline(aLongTimeAgo) })
	defer stop()

	frame, err := c.frames.ReadFrame()
	if err != nil {
		if errors.Is(err, wire.ErrProtocol) {
			return nil, err
		}
		return nil, ctxErr(ctx, "read frame", err)
	}
	return frame, nil
}

// WriteFrame writes payload followed by the delimiter.
func (c *TCPConn) WriteFrame(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(deadline(ctx, c.opts.FrameTimeout)); err != nil {
		return transportErr("set write deadline", err)
	}
	stop := context.AfterFunc(ctx, func() { c.conn.SetWriteDeadline(aLongTimeAgo) })
	defer stop()

	if err := wire.WriteFrame(c.conn, payload); err != nil {
		if errors.Is(err, wire.ErrEmbeddedDelimiter) {
			return err
		}
		return ctxErr(ctx, "write frame", err)
	}
	return nil
}

func (c *TCPConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

func (c *TCPConn) Close() error { return c.conn.Close() }

// TCPListener accepts worker connections on a TCP address.
type TCPListener struct {
	ln   *net.TCPListener
	opts Options
}

// ListenTCP binds addr. Use "127.0.0.1:0" to pick a free port.
func ListenTCP(addr string, opts Options) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, transportErr("listen "+addr, err)
	}
	return &TCPListener{ln: ln.(*net.TCPListener), opts: opts}, nil
}

// Accept waits for the next worker. Cancelling ctx unblocks it without
// closing the listener.
func (l *TCPListener) Accept(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.ln.SetDeadline(deadline(ctx, 0)); err != nil {
		return nil, transportErr("set accept deadline", err)
	}
	stop := context.AfterFunc(ctx, func() { l.ln.SetDeadline(aLongTimeAgo) })
	defer stop()

	c, err := l.ln.Accept()
	if err != nil {
		return nil, ctxErr(ctx, "accept", err)
	}
	return newTCPConn(c, l.opts), nil
}

func (l *TCPListener) Addr() string { return l.ln.Addr().String() }

func (l *TCPListener) Close() error { return l.ln.Close() }

var _ Listener = (*TCPListener)(nil)
var _ Conn = (*TCPConn)(nil)
