package sse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxLineSize is the longest line NewReader keeps. Longer lines are
// discarded and reported as ErrLineTooLong.
const MaxLineSize = 1024 * 1024

// ErrLineTooLong reports a discarded line. The Reader stays usable and the
// next call to Next continues after it.
var ErrLineTooLong = errors.New("sse line too long")

// Reader reads SSE data lines from a source io.Reader.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │  Reader.Next()   │── comments, blank lines, unknown fields skipped
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Event       │
// └──────────────────┘
type Reader struct {
	br   *bufio.Reader
	line int

	// eventType and id carry the last "event:" and "id:" fields forward to
	// the next data line.
	eventType string
	id        string
}

// NewReader returns a Reader that parses SSE data lines from src.
func NewReader(src io.Reader) *Reader {
	return NewReaderSize(src, MaxLineSize)
}

// NewReaderSize is NewReader with a custom line limit.
func NewReaderSize(src io.Reader, maxLine int) *Reader {
	return &Reader{br: bufio.NewReaderSize(src, maxLine)}
}

// Next returns the next data line as an Event. It blocks until a line is
// available. Next returns nil, nil when the source is exhausted.
//
// A line longer than the limit yields an error wrapping ErrLineTooLong;
// callers may skip it and call Next again.
func (r *Reader) Next() (*Event, error) {
	for {
		raw, err := r.readLine()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if errors.Is(err, ErrLineTooLong) {
			r.line++
			return nil, fmt.Errorf("%w: line %d", ErrLineTooLong, r.line)
		}
		if err != nil {
			return nil, err
		}
		r.line++

		// A blank line ends the current event; field carry-over resets.
		if raw == "" {
			r.reset()
			continue
		}

		// Lines starting with ':' are comments.
		if strings.HasPrefix(raw, ":") {
			continue
		}

		if ev := r.parseLine(raw); ev != nil {
			return ev, nil
		}
	}
}

// readLine returns the next line without its terminator. An overlong line
// is consumed up to its newline and reported as ErrLineTooLong.
func (r *Reader) readLine() (string, error) {
	b, err := r.br.ReadSlice('\n')
	switch {
	case err == nil:
		return strings.TrimRight(string(b), "\r\n"), nil

	case errors.Is(err, bufio.ErrBufferFull):
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = r.br.ReadSlice('\n')
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return "", ErrLineTooLong

	case errors.Is(err, io.EOF) && len(b) > 0:
		// Final line without a newline.
		return strings.TrimRight(string(b), "\r"), nil

	default:
		return "", err
	}
}

// parseLine processes a single non-empty, non-comment line. It returns an
// Event for "data" lines and nil for every other field.
//
// A line has the form "field:value" where the first space after the colon
// is optional and stripped if present.
func (r *Reader) parseLine(line string) *Event {
	field, value, ok := strings.Cut(line, ":")
	if !ok {
		// Bare words without a colon carry no data.
		return nil
	}
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "data":
		return &Event{
			Type: r.eventType,
			Data: value,
			ID:   r.id,
			Line: r.line,
		}
	case "event":
		r.eventType = value
	case "id":
		r.id = value
	default:
		// "retry" and unknown fields are ignored.
	}

	return nil
}

func (r *Reader) reset() {
	r.eventType = ""
	r.id = ""
}
