// Package session drives the coordinator side of one worker exchange: send
// the task, block for the result, check its shape, and report the outcome.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/dreamware/rowsplit/internal/matrix"
	"github.com/dreamware/rowsplit/internal/partition"
	"github.com/dreamware/rowsplit/internal/transport"
	"github.com/dreamware/rowsplit/internal/wire"
)

// State is a session's position in its lifecycle.
//
//	Pending -> Sent -> AwaitingResult -> Completed
//	   |         |            |
//	   +---------+------------+-------> Failed
//
// Completed and Failed are terminal.
type State int

const (
	StatePending State = iota
	StateSent
	StateAwaitingResult
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSent:
		return "sent"
	case StateAwaitingResult:
		return "awaiting_result"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// MarshalText renders the state name in JSON status reports.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st := StatePending; st <= StateFailed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("session: unknown state %q", text)
}

// Error describes why a session failed. It unwraps to the underlying cause,
// so errors.Is(err, wire.ErrProtocol) and friends work on it.
type Error struct {
	Partition partition.Partition
	Worker    string
	State     State // state in which the failure happened
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("session[%d] worker %s failed while %s: %v", e.Partition.Index, e.Worker, e.State, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Kind classifies the failure for reports: "dimension_mismatch",
// "protocol", "transport", "canceled" or "unknown".
func (e *Error) Kind() string {
	switch {
	case errors.Is(e.Err, matrix.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(e.Err, wire.ErrProtocol):
		return "protocol"
	case errors.Is(e.Err, transport.ErrTransport):
		return "transport"
	case errors.Is(e.Err, context.Canceled), errors.Is(e.Err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unknown"
	}
}

// TransitionFunc observes state changes. It is called synchronously from
// the session's goroutine and must not block.
type TransitionFunc func(p partition.Partition, from, to State)

// Session exchanges one task and one result with one worker. It owns its
// connection and closes it when Run returns.
type Session struct {
	part  partition.Partition
	conn  transport.Conn
	codec wire.Codec
	task  wire.Task
	bCols int

	onTransition TransitionFunc

	mu     sync.Mutex
	state  State
	result *matrix.Matrix
	err    error
}

// New builds the task for partition p from operands a and b. The task holds
// copies, so nothing is shared with the caller or with other sessions.
func New(p partition.Partition, conn transport.Conn, codec wire.Codec, a, b *matrix.Matrix) (*Session, error) {
	rows, err := a.Slice(p.Start, p.End)
	if err != nil {
		return nil, fmt.Errorf("session[%d]: %w", p.Index, err)
	}
	return &Session{
		part:  p,
		conn:  conn,
		codec: codec,
		task:  wire.Task{ARows: rows, B: b.Clone()},
		bCols: b.Cols(),
		state: StatePending,
	}, nil
}

// OnTransition registers fn to observe state changes. Call before Run.
func (s *Session) OnTransition(fn TransitionFunc) { s.onTransition = fn }

// Partition returns the row range this session serves.
func (s *Session) Partition() partition.Partition { return s.part }

// Worker returns the remote address of the worker.
func (s *Session) Worker() string { return s.conn.RemoteAddr() }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure cause once the session has failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Result returns the partial product once the session has completed.
func (s *Session) Result() *matrix.Matrix {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	if s.onTransition != nil {
		s.onTransition(s.part, from, to)
	}
}

// fail records err, moves to Failed and returns the wrapped *Error.
func (s *Session) fail(err error) error {
	s.mu.Lock()
	serr := &Error{Partition: s.part, Worker: s.conn.RemoteAddr(), State: s.state, Err: err}
	s.err = serr
	s.mu.Unlock()

	s.transition(StateFailed)
	log.Printf("session[%d] %s failed: %v", s.part.Index, s.part, err)
	return serr
}

// Run performs the exchange and blocks until the session is terminal.
// It may be called once.
func (s *Session) Run(ctx context.Context) (*matrix.Matrix, error) {
	defer s.conn.Close()

	if st := s.State(); st != StatePending {
		return nil, fmt.Errorf("session[%d]: run called in state %s", s.part.Index, st)
	}

	payload, err := s.codec.EncodeTask(s.task)
	if err != nil {
		return nil, s.fail(fmt.Errorf("encode task: %w", err))
	}
	if err := s.conn.WriteFrame(ctx, payload); err != nil {
		return nil, s.fail(fmt.Errorf("send task: %w", err))
	}
	s.transition(StateSent)
	s.transition(StateAwaitingResult)

	frame, err := s.conn.ReadFrame(ctx)
	if err != nil {
		return nil, s.fail(fmt.Errorf("receive result: %w", err))
	}
	result, err := s.codec.DecodeResult(frame)
	if err != nil {
		return nil, s.fail(err)
	}
	if err := s.checkShape(result); err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.result = result
	s.mu.Unlock()
	s.transition(StateCompleted)

	log.Printf("session[%d] %s completed by %s", s.part.Index, s.part, s.conn.RemoteAddr())
	return result, nil
}

// checkShape requires partition.Len() rows and, when there are rows, B's
// column count. An empty result carries no column count on the wire.
func (s *Session) checkShape(m *matrix.Matrix) error {
	if m.Rows() != s.part.Len() {
		return fmt.Errorf("%w: result has %d rows, partition has %d", matrix.ErrDimensionMismatch, m.Rows(), s.part.Len())
	}
	if m.Rows() > 0 && m.Cols() != s.bCols {
		return fmt.Errorf("%w: result has %d columns, want %d", matrix.ErrDimensionMismatch, m.Cols(), s.bCols)
	}
	return nil
}
