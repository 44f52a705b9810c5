// Package coordinator implements the orchestration layer of rowsplit.
// See doc.go for complete package documentation.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/dreamware/rowsplit/internal/matrix"
	"github.com/dreamware/rowsplit/internal/partition"
	"github.com/dreamware/rowsplit/internal/session"
	"github.com/dreamware/rowsplit/internal/transport"
	"github.com/dreamware/rowsplit/internal/wire"
)

var (
	// ErrUnrepresentableShape is returned when B has no rows but a non-zero
	// column count. The wire encodes B as a list of rows, so its width would
	// be lost and every worker would return the wrong shape.
	ErrUnrepresentableShape = errors.New("coordinator: operand shape cannot be sent to workers")

	// ErrJobRunning is returned when Multiply is called while another job is
	// in progress on the same coordinator.
	ErrJobRunning = errors.New("coordinator: a job is already running")

	// ErrIncompleteResult is returned if the barrier is passed with fewer
	// partials than partitions. It guards against assembling a matrix that
	// is missing rows.
	ErrIncompleteResult = errors.New("coordinator: missing partial results")
)

// Job states reported in JobStatus.State.
const (
	JobIdle      = "idle"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// Config controls how jobs are distributed.
type Config struct {
	// Workers is the number of partitions, and therefore the number of
	// worker connections accepted per job. Must be >= 1.
	Workers int

	// Codec serializes payloads. Nil selects wire.JSON.
	Codec wire.Codec

	// Observer, if set, sees every session state change after Status has
	// been updated. It runs on session goroutines and must not block.
	Observer session.TransitionFunc
}

// SessionStatus is a point-in-time view of one worker session.
type SessionStatus struct {
	Partition partition.Partition `json:"partition"`
	Worker    string              `json:"worker,omitempty"`
	State     session.State       `json:"state"`
	Error     string              `json:"error,omitempty"`
}

// JobStatus is a point-in-time view of the current or last job.
type JobStatus struct {
	ID         string          `json:"id,omitempty"`
	State      string          `json:"state"`
	Workers    int             `json:"workers"`
	Shape      string          `json:"shape,omitempty"`
	StartedAt  time.Time       `json:"started_at,omitempty"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
	Sessions   []SessionStatus `json:"sessions"`
	Error      string          `json:"error,omitempty"`
}

// Coordinator distributes A × B across worker connections accepted from a
// listener, one partition of A's rows per worker.
//
// Thread Safety:
// Status may be called concurrently with Multiply. Multiply itself runs one
// job at a time and returns ErrJobRunning if called concurrently.
type Coordinator struct {
	listener transport.Listener
	cfg      Config

	mu      sync.RWMutex
	running bool
	status  JobStatus
}

// New creates a coordinator that accepts workers from l.
func New(l transport.Listener, cfg Config) (*Coordinator, error) {
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("coordinator: %w", partition.ErrNoWorkers)
	}
	if cfg.Codec == nil {
		cfg.Codec = wire.JSON{}
	}
	return &Coordinator{
		listener: l,
		cfg:      cfg,
		status:   JobStatus{State: JobIdle, Workers: cfg.Workers, Sessions: []SessionStatus{}},
	}, nil
}

type partial struct {
	index  int
	result *matrix.Matrix
}

// Multiply computes a × b on the workers and returns the assembled product.
//
// Process:
//  1. Validate operand shapes (ErrDimensionMismatch before any network I/O)
//  2. Split A's rows into Config.Workers partitions
//  3. Accept one connection per partition; the i-th accepted worker serves
//     partition i and its session starts immediately
//  4. Wait for every session to become terminal (aggregation barrier)
//  5. Concatenate partials in partition order and verify the final shape
//
// Failure is fail-fast: the first session error cancels every other session
// and any pending accept, and Multiply returns that error (a *session.Error
// naming the partition and worker). No partial matrix is ever returned.
func (c *Coordinator) Multiply(ctx context.Context, a, b *matrix.Matrix) (*matrix.Matrix, error) {
	if err := validateOperands(a, b); err != nil {
		return nil, err
	}
	parts, err := partition.Split(a.Rows(), c.cfg.Workers)
	if err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	if err := c.begin(jobID, parts, a, b); err != nil {
		return nil, err
	}
	log.Printf("job[%s] %s x %s over %d workers on %s", jobID, a.Shape(), b.Shape(), len(parts), c.listener.Addr())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failure  error
		partials = make([]partial, 0, len(parts))
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if failure == nil {
			failure = err
			cancel()
		}
	}

	for _, p := range parts {
		conn, err := c.listener.Accept(ctx)
		if err != nil {
			fail(fmt.Errorf("accept worker for %s: %w", p, err))
			break
		}
		log.Printf("job[%s] worker %s connected, assigned %s", jobID, conn.RemoteAddr(), p)

		s, err := session.New(p, conn, c.cfg.Codec, a, b)
		if err != nil {
			conn.Close()
			fail(err)
			break
		}
		s.OnTransition(c.observe)
		c.setWorker(p.Index, conn.RemoteAddr())

		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := s.Run(ctx)
			if err != nil {
				c.setSessionError(p.Index, err)
				fail(err)
				return
			}
			mu.Lock()
			partials = append(partials, partial{index: p.Index, result: m})
			mu.Unlock()
		}()
	}

	wg.Wait()

	if failure != nil {
		c.finish(failure)
		log.Printf("job[%s] failed: %v", jobID, failure)
		return nil, fmt.Errorf("job %s: %w", jobID, failure)
	}

	result, err := assemble(partials, len(parts), a.Rows(), b.Cols())
	if err != nil {
		c.finish(err)
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}
	c.finish(nil)
	log.Printf("job[%s] assembled %s result", jobID, result.Shape())
	return result, nil
}

func validateOperands(a, b *matrix.Matrix) error {
	if a.Rows() == 0 {
		return nil
	}
	if a.Cols() != b.Rows() {
		return fmt.Errorf("%w: cannot multiply %s by %s", matrix.ErrDimensionMismatch, a.Shape(), b.Shape())
	}
	if b.Rows() == 0 && b.Cols() > 0 {
		return fmt.Errorf("%w: B is %s", ErrUnrepresentableShape, b.Shape())
	}
	return nil
}

// assemble concatenates partials in ascending partition order, regardless
// of the order in which sessions completed, and checks the final shape.
func assemble(partials []partial, want, rows, cols int) (*matrix.Matrix, error) {
	if len(partials) != want {
		return nil, fmt.Errorf("%w: have %d of %d", ErrIncompleteResult, len(partials), want)
	}
	slices.SortFunc(partials, func(x, y partial) int { return x.index - y.index })

	mats := make([]*matrix.Matrix, len(partials))
	for i, p := range partials {
		if p.index != i {
			return nil, fmt.Errorf("%w: partition %d missing", ErrIncompleteResult, i)
		}
		mats[i] = p.result
	}

	out, err := matrix.Concat(mats...)
	if err != nil {
		return nil, err
	}
	if out.Rows() != rows {
		return nil, fmt.Errorf("%w: assembled %d rows, want %d", matrix.ErrDimensionMismatch, out.Rows(), rows)
	}
	if rows == 0 {
		return matrix.New(0, cols)
	}
	if out.Cols() != cols {
		return nil, fmt.Errorf("%w: assembled %d columns, want %d", matrix.ErrDimensionMismatch, out.Cols(), cols)
	}
	return out, nil
}

// Status returns a copy of the current or most recent job's status.
func (c *Coordinator) Status() JobStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := c.status
	st.Sessions = slices.Clone(c.status.Sessions)
	return st
}

func (c *Coordinator) begin(id string, parts []partition.Partition, a, b *matrix.Matrix) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrJobRunning
	}
	c.running = true

	sessions := make([]SessionStatus, len(parts))
	for i, p := range parts {
		sessions[i] = SessionStatus{Partition: p, State: session.StatePending}
	}
	c.status = JobStatus{
		ID:        id,
		State:     JobRunning,
		Workers:   len(parts),
		Shape:     fmt.Sprintf("%dx%d", a.Rows(), b.Cols()),
		StartedAt: time.Now(),
		Sessions:  sessions,
	}
	return nil
}

func (c *Coordinator) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.running = false
	c.status.FinishedAt = time.Now()
	if err != nil {
		c.status.State = JobFailed
		c.status.Error = err.Error()
		return
	}
	c.status.State = JobSucceeded
}

func (c *Coordinator) observe(p partition.Partition, from, to session.State) {
	c.mu.Lock()
	c.status.Sessions[p.Index].State = to
	c.mu.Unlock()

	if c.cfg.Observer != nil {
		c.cfg.Observer(p, from, to)
	}
}

func (c *Coordinator) setWorker(index int, addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Sessions[index].Worker = addr
}

func (c *Coordinator) setSessionError(index int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Sessions[index].Error = err.Error()
}
