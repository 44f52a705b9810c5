// Package config loads coordinator job files and worker settings.
//
// A job file is YAML. Every field has a default, and a few can be overridden
// from the environment so that the same file works in containers:
//
//	listen: ":9000"          # TCP address workers dial
//	status_addr: ":8080"     # HTTP /health, /status and /ws
//	transport: tcp           # tcp | websocket
//	codec: json              # json | msgpack (websocket only)
//	workers: 2
//	frame_timeout: 30s
//	a: [[1, 2], [3, 4]]
//	b: [[1, 0], [0, 1]]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/rowsplit/internal/matrix"
	"github.com/dreamware/rowsplit/internal/transport"
	"github.com/dreamware/rowsplit/internal/wire"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Defaults applied by Parse and WorkerFromEnv.
const (
	DefaultListen       = ":9000"
	DefaultStatusAddr   = ":8080"
	DefaultWorkers      = 2
	DefaultFrameTimeout = 30 * time.Second
	DefaultDialAttempts = 10
	DefaultDialDelay    = 500 * time.Millisecond
)

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Job is a coordinator job file.
type Job struct {
	Listen        string        `yaml:"listen"`
	StatusAddr    string        `yaml:"status_addr"`
	Transport     string        `yaml:"transport"`
	Codec         string        `yaml:"codec"`
	Workers       int           `yaml:"workers"`
	FrameTimeout  time.Duration `yaml:"frame_timeout"`
	MaxFrameBytes int           `yaml:"max_frame_bytes"`
	Trace         bool          `yaml:"trace"`
	A             [][]int64     `yaml:"a"`
	B             [][]int64     `yaml:"b"`
}

func defaultJob() Job {
	return Job{
		Listen:       DefaultListen,
		StatusAddr:   DefaultStatusAddr,
		Transport:    transport.TCPName,
		Codec:        wire.JSONName,
		Workers:      DefaultWorkers,
		FrameTimeout: DefaultFrameTimeout,
	}
}

// Load reads and parses the job file at path.
func Load(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a job file on top of the defaults. Unknown keys are errors.
func Parse(data []byte) (Job, error) {
	job := defaultJob()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&job); err != nil && !errors.Is(err, io.EOF) {
		return Job{}, fmt.Errorf("config: parse job: %w", err)
	}
	return job, nil
}

// ApplyEnv overrides fields from COORDINATOR_ADDR, STATUS_ADDR, WORKERS,
// TRANSPORT and CODEC when they are set and non-empty.
func (j *Job) ApplyEnv(lookup LookupFunc) error {
	j.Listen = getenv(lookup, "COORDINATOR_ADDR", j.Listen)
	j.StatusAddr = getenv(lookup, "STATUS_ADDR", j.StatusAddr)
	j.Transport = getenv(lookup, "TRANSPORT", j.Transport)
	j.Codec = getenv(lookup, "CODEC", j.Codec)

	if v := getenv(lookup, "WORKERS", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: WORKERS=%q: %v", ErrInvalid, v, err)
		}
		j.Workers = n
	}
	return nil
}

// Validate checks the job can run. It does not check that A and B have
// compatible shapes; the coordinator reports that as a dimension mismatch.
func (j Job) Validate() error {
	if j.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalid, j.Workers)
	}
	if j.FrameTimeout < 0 {
		return fmt.Errorf("%w: frame_timeout must not be negative", ErrInvalid)
	}
	if j.MaxFrameBytes < 0 {
		return fmt.Errorf("%w: max_frame_bytes must not be negative", ErrInvalid)
	}
	if err := checkTransport(j.Transport, j.Codec); err != nil {
		return err
	}
	if _, _, err := j.Operands(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Operands returns A and B as matrices.
func (j Job) Operands() (*matrix.Matrix, *matrix.Matrix, error) {
	a, err := matrix.FromRows(j.A)
	if err != nil {
		return nil, nil, fmt.Errorf("operand a: %w", err)
	}
	b, err := matrix.FromRows(j.B)
	if err != nil {
		return nil, nil, fmt.Errorf("operand b: %w", err)
	}
	return a, b, nil
}

// TransportOptions returns the per-connection transport settings.
func (j Job) TransportOptions() transport.Options {
	return transport.Options{FrameTimeout: j.FrameTimeout, MaxFrameBytes: j.MaxFrameBytes}
}

// Worker holds a worker process's settings.
type Worker struct {
	CoordinatorAddr string
	Transport       string
	Codec           string
	Threads         int
	Trace           bool
	FrameTimeout    time.Duration
	DialAttempts    int
	DialDelay       time.Duration
}

// WorkerFromEnv reads COORDINATOR_ADDR, TRANSPORT, CODEC, WORKER_THREADS,
// WORKER_TRACE, FRAME_TIMEOUT and DIAL_ATTEMPTS.
//
// For the websocket transport COORDINATOR_ADDR is a ws:// URL; for tcp it is
// host:port.
func WorkerFromEnv(lookup LookupFunc) (Worker, error) {
	w := Worker{
		CoordinatorAddr: getenv(lookup, "COORDINATOR_ADDR", "127.0.0.1"+DefaultListen),
		Transport:       getenv(lookup, "TRANSPORT", transport.TCPName),
		Codec:           getenv(lookup, "CODEC", wire.JSONName),
		Threads:         1,
		FrameTimeout:    DefaultFrameTimeout,
		DialAttempts:    DefaultDialAttempts,
		DialDelay:       DefaultDialDelay,
	}

	var err error
	if w.Threads, err = intEnv(lookup, "WORKER_THREADS", w.Threads); err != nil {
		return Worker{}, err
	}
	if w.DialAttempts, err = intEnv(lookup, "DIAL_ATTEMPTS", w.DialAttempts); err != nil {
		return Worker{}, err
	}
	if v := getenv(lookup, "WORKER_TRACE", ""); v != "" {
		if w.Trace, err = strconv.ParseBool(v); err != nil {
			return Worker{}, fmt.Errorf("%w: WORKER_TRACE=%q: %v", ErrInvalid, v, err)
		}
	}
	if v := getenv(lookup, "FRAME_TIMEOUT", ""); v != "" {
		if w.FrameTimeout, err = time.ParseDuration(v); err != nil {
			return Worker{}, fmt.Errorf("%w: FRAME_TIMEOUT=%q: %v", ErrInvalid, v, err)
		}
	}

	if w.Threads < 1 {
		return Worker{}, fmt.Errorf("%w: WORKER_THREADS must be >= 1", ErrInvalid)
	}
	if err := checkTransport(w.Transport, w.Codec); err != nil {
		return Worker{}, err
	}
	return w, nil
}

// checkTransport rejects unknown names and codecs whose payloads may contain
// the frame delimiter on a delimiter-framed transport.
func checkTransport(name, codecName string) error {
	codec, err := wire.ByName(codecName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch name {
	case transport.TCPName:
		if !codec.DelimiterSafe() {
			return fmt.Errorf("%w: codec %s requires the %s transport", ErrInvalid, codec.Name(), transport.WebSocketName)
		}
	case transport.WebSocketName:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalid, name)
	}
	return nil
}

func getenv(lookup LookupFunc, k, def string) string {
	if v, ok := lookup(k); ok && v != "" {
		return v
	}
	return def
}

func intEnv(lookup LookupFunc, k string, def int) (int, error) {
	v := getenv(lookup, k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %v", ErrInvalid, k, v, err)
	}
	return n, nil
}
