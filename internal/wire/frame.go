package wire

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Delimiter terminates every frame on a byte stream.
const Delimiter = '\n'

// DefaultMaxFrameBytes bounds a single frame read from a stream.
const DefaultMaxFrameBytes = 64 << 20

var (
	// ErrProtocol is the root of every decode and framing failure. A protocol
	// error is fatal to the session that observed it.
	ErrProtocol = errors.New("wire: protocol error")

	// ErrTruncatedFrame is returned when the stream ends before a delimiter.
	ErrTruncatedFrame = errors.New("wire: stream closed before end of frame")

	// ErrFrameTooLarge is returned when a frame exceeds the reader's limit.
	ErrFrameTooLarge = errors.New("wire: frame too large")

	// ErrEmbeddedDelimiter is returned when a payload to be framed contains
	// the delimiter byte. Payloads must be delimiter-free by construction.
	ErrEmbeddedDelimiter = errors.New("wire: payload contains frame delimiter")
)

func protocolErr(err error) error {
	return fmt.Errorf("%w: %w", ErrProtocol, err)
}

// WriteFrame writes payload followed by a single Delimiter.
func WriteFrame(w io.Writer, payload []byte) error {
	if bytes.IndexByte(payload, Delimiter) >= 0 {
		return ErrEmbeddedDelimiter
	}
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, payload...)
	buf = append(buf, Delimiter)
	_, err := w.Write(buf)
	return err
}

// FrameReader reads delimiter-terminated frames from a byte stream.
type FrameReader struct {
	r   *bufio.Reader
	max int
}

// NewFrameReader wraps r. A maxBytes of zero or less selects
// DefaultMaxFrameBytes.
func NewFrameReader(r io.Reader, maxBytes int) *FrameReader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFrameBytes
	}
	return &FrameReader{r: bufio.NewReader(r), max: maxBytes}
}

// ReadFrame returns the next frame without its delimiter.
//
// End of stream before a delimiter is reported as ErrTruncatedFrame wrapped
// in ErrProtocol. Other read errors are returned unchanged so the transport
// can classify them.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	var frame []byte
	for {
		chunk, err := f.r.ReadSlice(Delimiter)
		if len(frame)+len(chunk) > f.max+1 {
			return nil, protocolErr(fmt.Errorf("%w: limit %d bytes", ErrFrameTooLarge, f.max))
		}
		frame = append(frame, chunk...)

		switch {
		case err == nil:
			return frame[:len(frame)-1], nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return nil, protocolErr(fmt.Errorf("%w after %d bytes", ErrTruncatedFrame, len(frame)))
		default:
			return nil, err
		}
	}
}
