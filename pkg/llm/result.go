package llm

// Result is the outcome of one remote inference call. Exactly one of Text
// or Err is meaningful: a Result with a nil Err is a success.
type Result struct {
	Text string
	Err  error
}

// Success wraps generated text.
func Success(text string) Result {
	return Result{Text: text}
}

// Failure wraps the error that prevented generation.
func Failure(err error) Result {
	return Result{Err: err}
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Reason returns the human-readable failure message, or "" on success.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// StreamDelta is one incremental fragment of a streamed generation.
type StreamDelta struct {
	Content string
	Index   int
}
