// Package main implements the rowsplit worker. A worker connects to the
// coordinator, receives one task (a block of rows of A plus all of B),
// returns the partial product and exits.
//
// Workers keep no state between runs; start one process per partition.
//
// Configuration:
//   - COORDINATOR_ADDR: host:port for tcp, ws:// URL for websocket
//     (default: "127.0.0.1:9000")
//   - TRANSPORT: tcp | websocket (default: tcp)
//   - CODEC: json | msgpack (default: json; msgpack needs websocket)
//   - WORKER_THREADS: Goroutines used by the kernel (default: 1)
//   - WORKER_TRACE: Write an LTSV trace of every product to stderr
//   - FRAME_TIMEOUT: Per-frame read/write deadline (default: 30s)
//   - DIAL_ATTEMPTS: Connection attempts before giving up (default: 10)
//
// Example usage:
//
//	COORDINATOR_ADDR=127.0.0.1:9000 ./worker
//	TRANSPORT=websocket CODEC=msgpack COORDINATOR_ADDR=ws://127.0.0.1:8080/ws ./worker
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dreamware/rowsplit/internal/config"
	"github.com/dreamware/rowsplit/internal/matrix"
	"github.com/dreamware/rowsplit/internal/trace"
	"github.com/dreamware/rowsplit/internal/transport"
	"github.com/dreamware/rowsplit/internal/wire"
	"github.com/dreamware/rowsplit/internal/worker"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

func main() {
	cfg, err := config.WorkerFromEnv(os.LookupEnv)
	if err != nil {
		logFatal("worker config: %v", err)
		return
	}

	rt, dial, err := newWorker(cfg, os.Stderr)
	if err != nil {
		logFatal("worker: %v", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.ConnectAndServe(ctx, dial, cfg.DialAttempts, cfg.DialDelay); err != nil {
		logFatal("worker: %v", err)
		return
	}
	log.Println("worker stopped")
}

// newWorker builds the runtime and dialer described by cfg. Traces, when
// enabled, go to traceOut.
func newWorker(cfg config.Worker, traceOut io.Writer) (*worker.Runtime, worker.DialFunc, error) {
	codec, err := wire.ByName(cfg.Codec)
	if err != nil {
		return nil, nil, err
	}

	kernel := []matrix.Option{matrix.WithParallelism(cfg.Threads)}
	if cfg.Trace {
		kernel = append(kernel, matrix.WithTracer(trace.NewLTSVTracer(traceOut, cfg.CoordinatorAddr)))
	}

	opts := transport.Options{FrameTimeout: cfg.FrameTimeout}
	var dial worker.DialFunc
	switch cfg.Transport {
	case transport.WebSocketName:
		binary := codec.Name() == wire.MsgpackName
		dial = func(ctx context.Context) (transport.Conn, error) {
			return transport.DialWebSocket(ctx, cfg.CoordinatorAddr, binary, opts)
		}
	default:
		dial = func(ctx context.Context) (transport.Conn, error) {
			return transport.DialTCP(ctx, cfg.CoordinatorAddr, opts)
		}
	}
	return worker.NewRuntime(codec, kernel...), dial, nil
}
