package pool

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TaskFunc is the callable a worker runs for one task.
// It receives the task's arguments and returns an opaque value; a non-nil
// error is handled according to the dispatcher's FailurePolicy.
type TaskFunc func(ctx context.Context, args Args) (any, error)

// TaskSpec describes one task submitted to Run.
//
// The callable is resolved in this order: Func, then the registry entry for
// Kind, then the dispatcher's default kind, then its default func.
type TaskSpec struct {
	Kind string
	Func TaskFunc
	Args Args
}

// TaskInfo identifies a task to the lifecycle hooks.
type TaskInfo struct {
	Index  int
	Kind   string
	Args   Args
	Worker int
}

// FailurePolicy decides what a worker does when a task returns an error.
type FailurePolicy int

const (
	// Abort stops the worker that ran the failing task. Other workers carry on.
	Abort FailurePolicy = iota
	// Skip reports the failure and moves on to the next task.
	Skip
)

func (p FailurePolicy) String() string {
	switch p {
	case Abort:
		return "abort"
	case Skip:
		return "skip"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// ParseFailurePolicy parses "abort" or "skip" (case-insensitive).
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "abort", "":
		return Abort, nil
	case "skip":
		return Skip, nil
	default:
		return Abort, fmt.Errorf("unknown failure policy %q (want abort or skip)", s)
	}
}

// Status describes what happened to one slot of the output.
type Status int

const (
	// StatusPending is the sentinel: no value was ever produced for the slot.
	StatusPending Status = iota
	// StatusOK means the task returned successfully.
	StatusOK
	// StatusSkipped means the task failed under the Skip policy.
	StatusSkipped
	// StatusAborted means the task failed under the Abort policy and its
	// worker stopped.
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusOK:
		return "ok"
	case StatusSkipped:
		return "skipped"
	case StatusAborted:
		return "aborted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is one slot of the output of Run, aligned with the input index.
//
// Fields:
//   - Index: position of the task in the input slice
//   - Kind: the task kind the callable was resolved from ("func" for inline funcs)
//   - Value: the returned value, only meaningful when Status is StatusOK
//   - Status: outcome of the slot; anything but StatusOK is the sentinel
//   - Err: the failure cause for skipped and aborted slots
//   - Worker: id of the worker that ran the task, -1 if it never ran
//   - Duration: time spent inside the task func
type Result struct {
	Index    int
	Kind     string
	Value    any
	Status   Status
	Err      error
	Worker   int
	Duration time.Duration
}

// OK reports whether the slot holds a produced value.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Values flattens results into their values, with nil for every sentinel slot.
func Values(results []Result) []any {
	out := make([]any, len(results))
	for i, r := range results {
		if r.OK() {
			out[i] = r.Value
		}
	}
	return out
}

// Summary counts results by status.
type Summary struct {
	Total   int
	OK      int
	Skipped int
	Aborted int
	Pending int
}

// Summarize counts the statuses of results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusOK:
			s.OK++
		case StatusSkipped:
			s.Skipped++
		case StatusAborted:
			s.Aborted++
		default:
			s.Pending++
		}
	}
	return s
}

// Failed is the number of slots without a value.
func (s Summary) Failed() int {
	return s.Total - s.OK
}

// Tasks builds one TaskSpec of the given kind per argument set.
func Tasks(kind string, args ...Args) []TaskSpec {
	specs := make([]TaskSpec, len(args))
	for i, a := range args {
		specs[i] = TaskSpec{Kind: kind, Args: a}
	}
	return specs
}
