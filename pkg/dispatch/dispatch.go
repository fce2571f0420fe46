// Package dispatch fans work out to a remote model in two shapes:
//
//   - Sequential sends fixed-size chunks one call at a time, in order, and
//     applies an explicit Policy when a chunk fails.
//   - Concurrent runs one call per item on a bounded worker pool and writes
//     each result into the slot of its input.
//
// Neither dispatcher ever aborts as a whole because one unit failed.
package dispatch

import "fmt"

// Policy decides what a failed chunk contributes to the results.
type Policy int

const (
	// FailOpen substitutes the fallback value for every item in the chunk.
	FailOpen Policy = iota

	// FailClosed drops the chunk's contributions entirely.
	FailClosed
)

func (p Policy) String() string {
	switch p {
	case FailOpen:
		return "fail-open"
	case FailClosed:
		return "fail-closed"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Chunk splits items into contiguous chunks of at most size elements.
// A size below 1 is treated as 1.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	size = max(size, 1)

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}

// Workers clamps a requested worker count to [1, min(maxWorkers, n)].
func Workers(maxWorkers, n int) int {
	return max(1, min(maxWorkers, n))
}

// Outcome is one result tagged with the index of the input it belongs to.
type Outcome[R any] struct {
	Index int
	Value R
}

// Values strips the indices from outcomes.
func Values[R any](outcomes []Outcome[R]) []R {
	values := make([]R, len(outcomes))
	for i, o := range outcomes {
		values[i] = o.Value
	}
	return values
}
