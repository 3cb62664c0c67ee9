package ai

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// LineReader yields complete newline-terminated lines from r regardless of
// how the underlying reads are split. A trailing line without a terminator
// is discarded at EOF.
type LineReader struct {
	r *bufio.Reader
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReader(r)}
}

// Next returns the next line without its "\n" or "\r\n" terminator.
func (l *LineReader) Next() (string, error) {
	line, err := l.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// SSEData extracts the payload of an SSE "data:" line.
func SSEData(line string) (string, bool) {
	payload, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(payload, " "), true
}

// LineDecoder turns one complete line into an optional text delta. done
// reports that the line ended the stream.
type LineDecoder func(line string) (delta string, done bool)

// LineStream adapts a line-framed HTTP body to ChatStream. It emits one chunk
// per non-empty delta and exactly one IsFinal chunk when the decoder reports
// the end. A body that ends without that signal stops without a final chunk.
type LineStream struct {
	provider string
	body     io.ReadCloser
	lines    *LineReader
	decode   LineDecoder
	cancel   context.CancelFunc

	pending []StreamChunk
	current StreamChunk
	err     error
	done    bool

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewLineStream takes ownership of body and cancel; both are released on
// Close or when the stream is drained.
func NewLineStream(provider string, body io.ReadCloser, cancel context.CancelFunc, decode LineDecoder) *LineStream {
	if cancel == nil {
		cancel = func() {}
	}
	return &LineStream{
		provider: provider,
		body:     body,
		lines:    NewLineReader(body),
		decode:   decode,
		cancel:   cancel,
	}
}

func (s *LineStream) Next() bool {
	for {
		if s.closed.Load() {
			return false
		}
		if len(s.pending) > 0 {
			s.current = s.pending[0]
			s.pending = s.pending[1:]
			return true
		}
		if s.done {
			s.Close()
			return false
		}

		line, err := s.lines.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.closed.Load() {
				s.err = NewTransportError(s.provider, err)
			}
			s.done = true
			continue
		}

		delta, done := s.decode(line)
		if delta != "" {
			s.pending = append(s.pending, StreamChunk{Delta: delta})
		}
		if done {
			s.pending = append(s.pending, StreamChunk{IsFinal: true})
			s.done = true
		}
	}
}

func (s *LineStream) Chunk() StreamChunk {
	return s.current
}

func (s *LineStream) Err() error {
	return s.err
}

// Close releases the body and cancels the request. Safe to call repeatedly.
func (s *LineStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.body.Close()
		s.cancel()
	})
	return err
}

// Collect drains stream into a single string. It reports whether a final
// chunk was seen.
func Collect(stream ChatStream) (string, bool, error) {
	defer stream.Close()

	var b strings.Builder
	final := false
	for stream.Next() {
		chunk := stream.Chunk()
		b.WriteString(chunk.Delta)
		if chunk.IsFinal {
			final = true
		}
	}
	return b.String(), final, stream.Err()
}
