// Package wire defines the task and result payloads exchanged between the
// coordinator and its workers, the codecs that serialize them and the
// newline framing used on byte-stream transports.
package wire

import (
	"encoding/json"
	"fmt"

	"gopkg.in/vmihailenco/msgpack.v2"

	"github.com/dreamware/rowsplit/internal/matrix"
)

// Task is the payload sent to one worker: its partition's rows of A and the
// whole of B. It is built per worker and never shared between sessions.
type Task struct {
	ARows *matrix.Matrix
	B     *matrix.Matrix
}

// taskFrame is the serialized shape of a Task:
//
//	{"a_rows": [[int,...],...], "b": [[int,...],...]}
type taskFrame struct {
	ARows [][]int64 `json:"a_rows" msgpack:"a_rows"`
	B     [][]int64 `json:"b" msgpack:"b"`
}

// Codec converts payloads to and from frame bodies. A frame body never
// includes the transport's delimiter.
type Codec interface {
	Name() string
	EncodeTask(Task) ([]byte, error)
	DecodeTask([]byte) (Task, error)
	EncodeResult(*matrix.Matrix) ([]byte, error)
	DecodeResult([]byte) (*matrix.Matrix, error)
	// DelimiterSafe reports whether encoded bodies are guaranteed to be free
	// of the newline delimiter, which stream framing requires.
	DelimiterSafe() bool
}

// Codec names accepted by ByName.
const (
	JSONName    = "json"
	MsgpackName = "msgpack"
)

// ByName returns the codec registered under name.
func ByName(name string) (Codec, error) {
	switch name {
	case JSONName, "":
		return JSON{}, nil
	case MsgpackName:
		return Msgpack{}, nil
	default:
		return nil, fmt.Errorf("wire: unknown codec %q", name)
	}
}

// JSON is the reference text codec. encoding/json escapes control
// characters inside strings and emits no whitespace between tokens, so an
// encoded body never contains a raw newline.
type JSON struct{}

func (JSON) Name() string        { return JSONName }
func (JSON) DelimiterSafe() bool { return true }

func (JSON) EncodeTask(t Task) ([]byte, error) {
	return json.Marshal(taskFrame{ARows: t.ARows.Data(), B: t.B.Data()})
}

func (JSON) DecodeTask(data []byte) (Task, error) {
	var f taskFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return Task{}, protocolErr(fmt.Errorf("decode task: %w", err))
	}
	return f.toTask()
}

func (JSON) EncodeResult(m *matrix.Matrix) ([]byte, error) {
	return json.Marshal(m.Data())
}

func (JSON) DecodeResult(data []byte) (*matrix.Matrix, error) {
	var rows [][]int64
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, protocolErr(fmt.Errorf("decode result: %w", err))
	}
	return resultFromRows(rows)
}

// Msgpack is a compact binary codec. Its output may contain any byte value,
// so it can only be carried by message-framed transports.
type Msgpack struct{}

func (Msgpack) Name() string        { return MsgpackName }
func (Msgpack) DelimiterSafe() bool { return false }

func (Msgpack) EncodeTask(t Task) ([]byte, error) {
	return msgpack.Marshal(&taskFrame{ARows: t.ARows.Data(), B: t.B.Data()})
}

func (Msgpack) DecodeTask(data []byte) (Task, error) {
	var f taskFrame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return Task{}, protocolErr(fmt.Errorf("decode task: %w", err))
	}
	return f.toTask()
}

func (Msgpack) EncodeResult(m *matrix.Matrix) ([]byte, error) {
	return msgpack.Marshal(m.Data())
}

func (Msgpack) DecodeResult(data []byte) (*matrix.Matrix, error) {
	var rows [][]int64
	if err := msgpack.Unmarshal(data, &rows); err != nil {
		return nil, protocolErr(fmt.Errorf("decode result: %w", err))
	}
	return resultFromRows(rows)
}

func (f taskFrame) toTask() (Task, error) {
	a, err := matrix.FromRows(f.ARows)
	if err != nil {
		return Task{}, protocolErr(fmt.Errorf("a_rows: %w", err))
	}
	b, err := matrix.FromRows(f.B)
	if err != nil {
		return Task{}, protocolErr(fmt.Errorf("b: %w", err))
	}
	return Task{ARows: a, B: b}, nil
}

func resultFromRows(rows [][]int64) (*matrix.Matrix, error) {
	m, err := matrix.FromRows(rows)
	if err != nil {
		return nil, protocolErr(fmt.Errorf("result: %w", err))
	}
	return m, nil
}
