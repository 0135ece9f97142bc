package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dallenpyrah/OpenCode/internal/httpkit"
)

// doneSentinel terminates a server-sent event stream.
const doneSentinel = "[DONE]"

// DecodeError reports a stream event that could not be decoded. Line holds
// the offending payload so callers can log exactly what the endpoint sent.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding stream event %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Stream decodes server-sent events from a chat-completion response body
// into chunks. It buffers raw bytes internally, so reads that split an
// event at any byte boundary decode identically to reads that deliver it
// whole.
//
// Not safe for concurrent use.
type Stream struct {
	body io.ReadCloser
	buf  bytes.Buffer
	read [4096]byte
	err  error
}

// NewStream wraps a response body in a stream decoder. The caller owns
// the stream and must call Close when finished with it.
func NewStream(body io.ReadCloser) *Stream {
	return &Stream{body: body}
}

// Recv returns the next chunk. It returns io.EOF after the terminating
// sentinel or a clean end of the body, and a *DecodeError when an event
// fails to decode or the body ends mid-event. After any error, subsequent
// calls return the same error.
func (s *Stream) Recv() (*Chunk, error) {
	if s.err != nil {
		return nil, s.err
	}

	for {
		line, ok := s.nextLine()
		if !ok {
			if err := s.fill(); err != nil {
				s.err = err
				return nil, err
			}
			continue
		}

		data, ok := eventData(line)
		if !ok {
			// Blank keep-alive lines, comments, and non-data fields.
			continue
		}

		if string(data) == doneSentinel {
			s.err = io.EOF
			return nil, io.EOF
		}
		if len(data) == 0 {
			// A data field with no payload carries nothing to decode.
			continue
		}

		var chunk Chunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			s.err = &DecodeError{Line: string(line), Err: err}
			return nil, s.err
		}
		return &chunk, nil
	}
}

// nextLine drains the buffer up to the first newline.
func (s *Stream) nextLine() ([]byte, bool) {
	raw := s.buf.Bytes()
	i := bytes.IndexByte(raw, '\n')
	if i < 0 {
		return nil, false
	}
	line := make([]byte, i)
	copy(line, raw[:i])
	s.buf.Next(i + 1)
	return bytes.TrimSuffix(line, []byte("\r")), true
}

// fill reads more bytes from the body into the buffer. A read may return
// data and EOF together; the data is surfaced first so buffered complete
// lines drain before the end of the body is judged. A clean EOF with an
// empty buffer ends the stream; an EOF that strands an unterminated line
// means the endpoint cut the connection mid-message.
func (s *Stream) fill() error {
	n, err := s.body.Read(s.read[:])
	s.buf.Write(s.read[:n])
	if n > 0 || err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		// fill is only entered when the buffer holds no newline, so any
		// leftover content here is a partial line.
		if len(bytes.TrimSpace(s.buf.Bytes())) > 0 {
			return &DecodeError{
				Line: s.buf.String(),
				Err:  fmt.Errorf("stream ended mid-event: %w", io.ErrUnexpectedEOF),
			}
		}
		return io.EOF
	}
	return fmt.Errorf("reading stream: %w", err)
}

// eventData extracts the payload from a "data:" line. Returns false for
// blank lines, SSE comments, and other field types.
func eventData(line []byte) ([]byte, bool) {
	after, ok := bytes.CutPrefix(line, []byte("data:"))
	if !ok {
		return nil, false
	}
	return bytes.TrimSpace(after), true
}

// Close releases the underlying response body. Safe to call multiple
// times and after Recv has returned an error.
func (s *Stream) Close() error {
	if s.body == nil {
		return nil
	}
	httpkit.DrainAndClose(s.body, 4096)
	s.body = nil
	return nil
}
