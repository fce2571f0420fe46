// Package sse provides a minimal, line-oriented SSE (Server-Sent Events)
// reader for consuming streamed completions from a vLLM server.
//
// vLLM frames every chunk as a single "data: {...}" line, so the reader
// yields one Event per data line instead of waiting for the blank-line event
// terminator. This keeps a malformed line isolated to its own Event.
//
// Event stream format:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// DoneSentinel is the OpenAI-compatible end-of-stream marker.
const DoneSentinel = "[DONE]"

// Event represents a single parsed "data:" line in the upstream byte stream.
type Event struct {
	// Type is the most recent "event:" field seen before this data line.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the value of the "data:" line with one leading space stripped.
	Data string

	// ID is the most recent "id:" field seen before this data line.
	ID string

	// Line is the 1-based line number in the source stream.
	Line int
}

// Done reports whether the event is the end-of-stream sentinel.
func (e *Event) Done() bool {
	return e.Data == DoneSentinel
}
