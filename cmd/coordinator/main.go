// Package main implements the rowsplit coordinator, which splits one matrix
// product across remote workers and prints the assembled result.
//
// The coordinator runs exactly one job and exits:
//   - Loads the job file and applies environment overrides
//   - Serves /health and /status over HTTP (and /ws for WebSocket workers)
//   - Waits for one worker per partition and distributes the rows of A
//   - Prints A × B on success, or the failing partition on error
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│              Coordinator                │
//	├─────────────────────────────────────────┤
//	│  HTTP API (STATUS_ADDR):                │
//	│    /health       - Liveness check       │
//	│    /status       - Job and sessions     │
//	│    /ws           - WebSocket workers    │
//	├─────────────────────────────────────────┤
//	│  Worker listener (COORDINATOR_ADDR):    │
//	│    TCP, newline-delimited JSON frames   │
//	└─────────────────────────────────────────┘
//
// Configuration:
//   - JOB_CONFIG: Job file path (default: "job.yaml")
//   - COORDINATOR_ADDR: TCP listen address for workers
//   - STATUS_ADDR: HTTP listen address
//   - WORKERS, TRANSPORT, CODEC: Override the job file
//
// Example usage:
//
//	JOB_CONFIG=deploy/demo-job.yaml ./coordinator
//	COORDINATOR_ADDR=127.0.0.1:9000 ./worker &
//	COORDINATOR_ADDR=127.0.0.1:9000 ./worker &
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dreamware/rowsplit/internal/config"
	"github.com/dreamware/rowsplit/internal/coordinator"
	"github.com/dreamware/rowsplit/internal/matrix"
	"github.com/dreamware/rowsplit/internal/session"
	"github.com/dreamware/rowsplit/internal/trace"
	"github.com/dreamware/rowsplit/internal/transport"
	"github.com/dreamware/rowsplit/internal/wire"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

func main() {
	path := getenv("JOB_CONFIG", "job.yaml")
	job, err := config.Load(path)
	if err != nil {
		logFatal("load job: %v", err)
		return
	}
	if err := job.ApplyEnv(os.LookupEnv); err != nil {
		logFatal("job env: %v", err)
		return
	}
	if err := job.Validate(); err != nil {
		logFatal("job %s: %v", path, err)
		return
	}
	a, b, err := job.Operands()
	if err != nil {
		logFatal("job %s: %v", path, err)
		return
	}

	srv, err := newServer(job, os.Stderr)
	if err != nil {
		logFatal("coordinator: %v", err)
		return
	}
	defer srv.listener.Close()

	httpSrv := &http.Server{
		Addr:              job.StatusAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("coordinator status listening on %s", job.StatusAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("listen: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	result, jobErr := srv.coord.Multiply(ctx, a, b)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	if err := report(os.Stdout, result, jobErr); err != nil {
		log.Printf("coordinator stopped: %v", err)
		os.Exit(1)
	}
	log.Println("coordinator stopped")
}

type server struct {
	coord    *coordinator.Coordinator
	listener transport.Listener
	ws       *transport.WebSocketListener
}

// newServer builds the worker listener named by the job and a coordinator
// on top of it. When job.Trace is set, session transitions are written to
// traceOut as LTSV.
func newServer(job config.Job, traceOut io.Writer) (*server, error) {
	codec, err := wire.ByName(job.Codec)
	if err != nil {
		return nil, err
	}
	opts := job.TransportOptions()

	s := &server{}
	switch job.Transport {
	case transport.WebSocketName:
		s.ws = transport.NewWebSocketListener(job.StatusAddr+"/ws", codec.Name() == wire.MsgpackName, opts)
		s.listener = s.ws
	default:
		l, err := transport.ListenTCP(job.Listen, opts)
		if err != nil {
			return nil, err
		}
		log.Printf("coordinator accepting workers on %s", l.Addr())
		s.listener = l
	}

	cfg := coordinator.Config{Workers: job.Workers, Codec: codec}
	if job.Trace {
		cfg.Observer = trace.NewLTSVTracer(traceOut, "coordinator").Transition
	}
	s.coord, err = coordinator.New(s.listener, cfg)
	if err != nil {
		s.listener.Close()
		return nil, err
	}
	return s, nil
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/status", s.handleStatus)
	if s.ws != nil {
		mux.Handle("/ws", s.ws)
	}
	return mux
}

// handleStatus returns the current job and its sessions as JSON.
func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.coord.Status())
}

// report prints the result, or describes the failure and returns it.
func report(w io.Writer, result *matrix.Matrix, jobErr error) error {
	if jobErr != nil {
		var serr *session.Error
		if errors.As(jobErr, &serr) {
			fmt.Fprintf(w, "job failed: partition %d (rows %d..%d) on worker %s: %s error\n",
				serr.Partition.Index, serr.Partition.Start, serr.Partition.End, serr.Worker, serr.Kind())
		} else {
			fmt.Fprintf(w, "job failed: %v\n", jobErr)
		}
		return jobErr
	}
	fmt.Fprint(w, result)
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
