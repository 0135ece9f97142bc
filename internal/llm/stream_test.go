package llm

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkedReader delivers its payload in fixed-size reads to exercise
// event framing across arbitrary byte boundaries.
type chunkedReader struct {
	data []byte
	size int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.size
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func (r *chunkedReader) Close() error { return nil }

const sampleStream = `data: {"id":"gen-1","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}

data: {"id":"gen-1","choices":[{"index":0,"delta":{"content":"lo"}}]}

data: {"id":"gen-1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}

data: [DONE]

`

func collect(t *testing.T, s *Stream) []string {
	t.Helper()
	var parts []string
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return parts
		}
		if err != nil {
			t.Fatalf("Recv() error: %v", err)
		}
		parts = append(parts, chunk.Content())
	}
}

func TestStreamRecv(t *testing.T) {
	s := NewStream(io.NopCloser(strings.NewReader(sampleStream)))
	defer s.Close()

	parts := collect(t, s)
	if got := strings.Join(parts, ""); got != "Hello" {
		t.Errorf("assembled content = %q, want Hello", got)
	}
	if len(parts) != 3 {
		t.Errorf("got %d chunks, want 3", len(parts))
	}
}

func TestStreamBoundaryIndependence(t *testing.T) {
	// Every split size must assemble the same content, including sizes
	// that cut events mid-line and mid-JSON.
	for _, size := range []int{1, 2, 3, 7, 16, 64, len(sampleStream)} {
		s := NewStream(&chunkedReader{data: []byte(sampleStream), size: size})
		parts := collect(t, s)
		if got := strings.Join(parts, ""); got != "Hello" {
			t.Errorf("split size %d: content = %q, want Hello", size, got)
		}
		s.Close()
	}
}

func TestStreamSkipsCommentsAndBlankLines(t *testing.T) {
	input := ": keep-alive\n\n" +
		"event: message\n" +
		"data: {\"id\":\"gen-2\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"ok\"}}]}\n\n" +
		"data: [DONE]\n\n"
	s := NewStream(io.NopCloser(strings.NewReader(input)))
	defer s.Close()

	parts := collect(t, s)
	if len(parts) != 1 || parts[0] != "ok" {
		t.Errorf("parts = %v, want [ok]", parts)
	}
}

func TestStreamSkipsEmptyDataFrames(t *testing.T) {
	// A data field with no payload is skipped, not decoded.
	input := "data:\n\n" +
		"data: \n\n" +
		"data: {\"id\":\"gen-6\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"ok\"}}]}\n\n" +
		"data: [DONE]\n\n"
	s := NewStream(io.NopCloser(strings.NewReader(input)))
	defer s.Close()

	parts := collect(t, s)
	if len(parts) != 1 || parts[0] != "ok" {
		t.Errorf("parts = %v, want [ok]", parts)
	}
}

// eagerEOFReader returns its whole payload and io.EOF from the same Read
// call, as the io.Reader contract allows and HTTP bodies commonly do.
type eagerEOFReader struct {
	data []byte
}

func (r *eagerEOFReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	if len(r.data) == 0 {
		return n, io.EOF
	}
	return n, nil
}

func (r *eagerEOFReader) Close() error { return nil }

func TestStreamDataWithEOFInSameRead(t *testing.T) {
	s := NewStream(&eagerEOFReader{data: []byte(sampleStream)})
	defer s.Close()

	parts := collect(t, s)
	if got := strings.Join(parts, ""); got != "Hello" {
		t.Errorf("assembled content = %q, want Hello", got)
	}
}

func TestStreamDecodeError(t *testing.T) {
	input := "data: {not json}\n\n"
	s := NewStream(io.NopCloser(strings.NewReader(input)))
	defer s.Close()

	_, err := s.Recv()
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("Recv() error = %v, want *DecodeError", err)
	}
	if !strings.Contains(decErr.Line, "{not json}") {
		t.Errorf("DecodeError.Line = %q, want the offending payload", decErr.Line)
	}

	// The error is sticky.
	if _, err2 := s.Recv(); !errors.Is(err2, err) {
		t.Errorf("second Recv() = %v, want same error", err2)
	}
}

func TestStreamTruncated(t *testing.T) {
	// Body ends mid-event with no trailing newline.
	input := `data: {"id":"gen-3","choices":[{"index":0,"del`
	s := NewStream(io.NopCloser(strings.NewReader(input)))
	defer s.Close()

	_, err := s.Recv()
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("Recv() error = %v, want *DecodeError", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Recv() error = %v, want wrapped io.ErrUnexpectedEOF", err)
	}
}

func TestStreamCleanEOFWithoutSentinel(t *testing.T) {
	// A body that ends cleanly after complete events is treated as done
	// even without the terminating sentinel.
	input := "data: {\"id\":\"gen-4\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"x\"}}]}\n\n"
	s := NewStream(io.NopCloser(strings.NewReader(input)))
	defer s.Close()

	parts := collect(t, s)
	if len(parts) != 1 || parts[0] != "x" {
		t.Errorf("parts = %v, want [x]", parts)
	}
}

func TestStreamToolCallFragments(t *testing.T) {
	input := `data: {"id":"gen-5","choices":[{"index":0,"delta":{"tool_calls":[{"id":"call_1","type":"function","function":{"name":"FileReadTool","arguments":"{\"pa"}}]}}]}

data: {"id":"gen-5","choices":[{"index":0,"delta":{"tool_calls":[{"function":{"arguments":"th\":\"a.txt\"}"}}]}}]}

data: [DONE]

`
	s := NewStream(io.NopCloser(strings.NewReader(input)))
	defer s.Close()

	var args strings.Builder
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv() error: %v", err)
		}
		for _, tc := range chunk.Choices[0].Delta.ToolCalls {
			args.WriteString(tc.Function.Arguments)
		}
	}
	if args.String() != `{"path":"a.txt"}` {
		t.Errorf("assembled arguments = %q", args.String())
	}
}
