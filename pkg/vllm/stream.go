package vllm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/spyre/pkg/llm"
	"github.com/papercomputeco/spyre/pkg/metrics"
	"github.com/papercomputeco/spyre/pkg/sse"
)

// Stream is an open streaming response. It is consumed once through Deltas
// and is not restartable: open a new stream to generate again.
type Stream struct {
	body    io.ReadCloser
	reader  *sse.Reader
	logger  *slog.Logger
	metrics *metrics.Metrics

	consumed    atomic.Bool
	parseErrors atomic.Int64
	err         error
	closeOnce   sync.Once
}

func newStream(body io.ReadCloser, logger *slog.Logger, m *metrics.Metrics) *Stream {
	return &Stream{
		body:    body,
		reader:  sse.NewReader(body),
		logger:  logger,
		metrics: m,
	}
}

// Deltas returns a lazy sequence of text fragments in arrival order.
//
// Lines that are not valid JSON, or longer than sse.MaxLineSize, are counted
// in ParseErrors and skipped. Chunks without content yield nothing. The sequence ends when the server
// closes the connection, the "[DONE]" sentinel arrives, or a read fails; in
// the last case Err reports the failure. The body is closed when iteration
// stops, including early breaks by the caller.
func (s *Stream) Deltas() iter.Seq[llm.StreamDelta] {
	return func(yield func(llm.StreamDelta) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			return
		}
		defer s.Close()

		for {
			ev, err := s.reader.Next()
			if errors.Is(err, sse.ErrLineTooLong) {
				s.skip(err)
				continue
			}
			if err != nil {
				s.err = fmt.Errorf("%w: reading stream: %v", ErrTransport, err)
				return
			}
			if ev == nil || ev.Done() {
				return
			}

			delta, ok := s.decode(ev)
			if !ok {
				continue
			}

			if !yield(delta) {
				return
			}
		}
	}
}

// Text drains the stream and concatenates every delta.
func (s *Stream) Text() (string, error) {
	var sb strings.Builder
	for d := range s.Deltas() {
		sb.WriteString(d.Content)
	}
	return sb.String(), s.Err()
}

// Err returns the read error that ended the stream, if any. It is only
// meaningful after iteration has finished.
func (s *Stream) Err() error {
	return s.err
}

// ParseErrors returns how many streamed lines were skipped as malformed.
func (s *Stream) ParseErrors() int64 {
	return s.parseErrors.Load()
}

// Close releases the underlying connection. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}

// skip records a streamed line that could not be used.
func (s *Stream) skip(cause error) {
	s.parseErrors.Add(1)
	s.metrics.StreamDecodeError()
	s.logger.Debug("skipping malformed stream line", "error", fmt.Errorf("%w: %v", ErrDecode, cause))
}

// decode extracts the first choice's incremental content from one event.
func (s *Stream) decode(ev *sse.Event) (llm.StreamDelta, bool) {
	var chunk llm.CompletionResponse
	if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
		s.skip(fmt.Errorf("line %d: %w", ev.Line, err))
		return llm.StreamDelta{}, false
	}

	if len(chunk.Choices) == 0 {
		return llm.StreamDelta{}, false
	}

	choice := chunk.Choices[0]
	content := choice.Text
	if choice.Delta != nil {
		content = choice.Delta.Content
	}
	if content == "" {
		return llm.StreamDelta{}, false
	}

	return llm.StreamDelta{Content: content, Index: choice.Index}, true
}
