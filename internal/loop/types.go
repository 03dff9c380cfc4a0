package loop

import (
	"github.com/revloop/revloop/internal/classify"
)

// Status is the terminal state of an orchestration run.
type Status int

const (
	// StatusClean means the thread set emptied out.
	StatusClean Status = iota
	// StatusPartial means threads remain that need human attention, or the
	// iteration budget ran out.
	StatusPartial
	// StatusFailed means a fatal error (fetch-retry exhaustion or publish
	// failure) aborted the run.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusPartial:
		return "partial"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Classification is the loop-local verdict for one thread. Created fresh
// every iteration, never mutated, discarded after the iteration replies
// and resolves.
type Classification struct {
	ThreadID string
	Severity classify.Severity
	Fixable  bool
	Path     string
	Line     int
}

// ReplyOutcome records the result of one reply call. Failures are carried
// explicitly so callers can tell "degraded but continuing" from "fatal".
type ReplyOutcome struct {
	ThreadID string
	Ref      string
	Err      error
}

// IterationResult accumulates one loop pass.
type IterationResult struct {
	Iteration  int
	Fixable    int
	Skipped    int
	PublishRef string // empty when nothing was published
	Replies    []ReplyOutcome
	ResolveErr error
}

// RunResult is the authoritative summary of a run. Intermediate
// per-iteration detail is log-only.
type RunResult struct {
	Status       Status
	Iterations   int
	TotalFixed   int
	TotalSkipped int
	// Remaining is the open-thread count re-fetched at exit (best effort).
	Remaining int
	// PublishRefs lists the publish references produced, in order.
	PublishRefs []string
	// Err describes the fatal condition when Status is StatusFailed.
	Err error
}
