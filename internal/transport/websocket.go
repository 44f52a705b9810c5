package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dreamware/rowsplit/internal/wire"
)

// closeWait bounds the close handshake on Close.
const closeWait = time.Second

// WebSocketConn carries one frame per WebSocket message, so frame bodies may
// contain any byte, including newlines.
type WebSocketConn struct {
	ws     *websocket.Conn
	opts   Options
	binary bool
}

func newWebSocketConn(ws *websocket.Conn, opts Options, binary bool) *WebSocketConn {
	limit := opts.MaxFrameBytes
	if limit <= 0 {
		limit = wire.DefaultMaxFrameBytes
	}
	ws.SetReadLimit(int64(limit))
	return &WebSocketConn{ws: ws, opts: opts, binary: binary}
}

// DialWebSocket connects to a coordinator's WebSocket endpoint, e.g.
// "ws://127.0.0.1:8080/ws". When binary is set, frames are sent as binary
// messages, which a codec that is not delimiter-safe requires.
func DialWebSocket(ctx context.Context, url string, binary bool, opts Options) (*WebSocketConn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, transportErr("dial "+url, fmt.Errorf("%w (http %d)", err, resp.StatusCode))
		}
		return nil, transportErr("dial "+url, err)
	}
	return newWebSocketConn(ws, opts, binary), nil
}

// ReadFrame reads the next data message. A close from the peer before the
// message arrives is a truncated frame.
func (c *WebSocketConn) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.ws.SetReadDeadline(deadline(ctx, c.opts.FrameTimeout)); err != nil {
		return nil, transportErr("set read deadline", err)
	}
	stop := context.AfterFunc(ctx, func() { c.ws.NetConn().SetReadDeadline(aLongTimeAgo) })
	defer stop()

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		switch {
		case errors.As(err, &closeErr):
			return nil, fmt.Errorf("%w: %w: peer closed (%d)", wire.ErrProtocol, wire.ErrTruncatedFrame, closeErr.Code)
		case errors.Is(err, websocket.ErrReadLimit):
			return nil, fmt.Errorf("%w: %w", wire.ErrProtocol, wire.ErrFrameTooLarge)
		}
		return nil, ctxErr(ctx, "read frame", err)
	}
	return data, nil
}

// WriteFrame sends payload as a single text or binary message.
func (c *WebSocketConn) WriteFrame(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.ws.SetWriteDeadline(deadline(ctx, c.opts.FrameTimeout)); err != nil {
		return transportErr("set write deadline", err)
	}
	stop := context.AfterFunc(ctx, func() { c.ws.NetConn().SetWriteDeadline(aLongTimeAgo) })
	defer stop()

	mt := websocket.TextMessage
	if c.binary {
		mt = websocket.BinaryMessage
	}
	if err := c.ws.WriteMessage(mt, payload); err != nil {
		return ctxErr(ctx, "write frame", err)
	}
	return nil
}

func (c *WebSocketConn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// Close sends a normal closure and closes the underlying connection.
func (c *WebSocketConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
	return c.ws.Close()
}

// WebSocketListener is an http.Handler that upgrades worker requests and
// hands the resulting connections to Accept. Mount it on the coordinator's
// HTTP mux; it does not listen by itself.
type WebSocketListener struct {
	upgrader  websocket.Upgrader
	conns     chan *WebSocketConn
	done      chan struct{}
	closeOnce sync.Once
	addr      string
	opts      Options
	binary    bool
}

// NewWebSocketListener returns a listener that reports addr as its address.
func NewWebSocketListener(addr string, binary bool, opts Options) *WebSocketListener {
	return &WebSocketListener{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns:  make(chan *WebSocketConn),
		done:   make(chan struct{}),
		addr:   addr,
		opts:   opts,
		binary: binary,
	}
}

// ServeHTTP upgrades the request and blocks until the connection is accepted
// or the listener is closed.
func (l *WebSocketListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-l.done:
		http.Error(w, "listener closed", http.StatusServiceUnavailable)
		return
	default:
	}

	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	c := newWebSocketConn(ws, l.opts, l.binary)

	select {
	case l.conns <- c:
	case <-l.done:
		c.Close()
	}
}

// Accept returns the next upgraded worker connection.
func (l *WebSocketListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("transport: accept: %w", ctx.Err())
	case <-l.done:
		return nil, transportErr("accept", net.ErrClosed)
	}
}

func (l *WebSocketListener) Addr() string { return l.addr }

// Close stops accepting. Requests waiting in ServeHTTP are released.
func (l *WebSocketListener) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}

var _ Listener = (*WebSocketListener)(nil)
var _ Conn = (*WebSocketConn)(nil)
